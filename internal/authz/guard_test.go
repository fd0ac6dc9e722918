package authz

import (
	"testing"

	"github.com/spothq/spothub/internal/domain/user"
)

func TestCanDecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		caller Caller
		action Action
		res    Resource
		want   bool
	}{
		{
			name:   "admin can do anything to anyone",
			caller: Caller{Subject: "admin", Role: user.RoleAdmin},
			action: ActionDelete,
			res:    Resource{Owner: "bob"},
			want:   true,
		},
		{
			name:   "admin can list private collections",
			caller: Caller{Subject: "admin", Role: user.RoleAdmin},
			action: ActionList,
			res:    Resource{},
			want:   true,
		},
		{
			name:   "user can read own private resource",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionRead,
			res:    Resource{Owner: "alice"},
			want:   true,
		},
		{
			name:   "user cannot read another's private resource",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionRead,
			res:    Resource{Owner: "bob"},
			want:   false,
		},
		{
			name:   "user can read another's public resource",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionRead,
			res:    Resource{Owner: "bob", Public: true},
			want:   true,
		},
		{
			name:   "user can write own resource",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionWrite,
			res:    Resource{Owner: "alice", Public: true},
			want:   true,
		},
		{
			name:   "user cannot write another's resource even if public",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionWrite,
			res:    Resource{Owner: "bob", Public: true},
			want:   false,
		},
		{
			name:   "user cannot delete another's resource",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionDelete,
			res:    Resource{Owner: "bob", Public: true},
			want:   false,
		},
		{
			name:   "user cannot list private collections",
			caller: Caller{Subject: "alice", Role: user.RoleUser},
			action: ActionList,
			res:    Resource{},
			want:   false,
		},
		{
			name:   "empty subject never owns anything",
			caller: Caller{Subject: "", Role: user.RoleUser},
			action: ActionWrite,
			res:    Resource{Owner: ""},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Can(tt.caller, tt.action, tt.res)

			if got != tt.want {
				t.Fatalf("Can(%+v, %v, %+v) = %v, want %v", tt.caller, tt.action, tt.res, got, tt.want)
			}
		})
	}
}
