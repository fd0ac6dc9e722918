// Package authz holds the single ownership/role decision table. Handlers
// and middleware ask it; nobody re-derives policy inline.
package authz

import "github.com/spothq/spothub/internal/domain/user"

type Action int

const (
	ActionList Action = iota // list every resource of a kind
	ActionRead
	ActionWrite
	ActionDelete
)

type Caller struct {
	Subject string
	Role    string
}

// Resource is what the caller is acting on. Public resources (spots) are
// readable by any authenticated caller; private ones (user records) only
// by their owner or an admin.
type Resource struct {
	Owner  string
	Public bool
}

func Can(caller Caller, action Action, res Resource) bool {
	if caller.Role == user.RoleAdmin {
		return true
	}

	owns := caller.Subject != "" && caller.Subject == res.Owner

	switch action {
	case ActionList:
		// listing all of a private collection stays admin-only;
		// public collections are listed through ActionRead per item
		return res.Public
	case ActionRead:
		return res.Public || owns
	case ActionWrite, ActionDelete:
		return owns
	default:
		return false
	}
}
