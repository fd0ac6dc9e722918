package spot

import (
	"time"

	"github.com/google/uuid"
)

// createdBy comes from the verified identity, never from the payload.
func NewFromCreateRequest(req CreateSpotRequest, createdBy string) Spot {
	now := time.Now()

	return Spot{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
