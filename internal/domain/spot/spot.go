package spot

import (
	"errors"
	"time"
)

type Spot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListSpotsFilter struct {
	Query     *string // case-insensitive name search
	CreatedBy *string
	Limit     int
	Offset    int
}

var ErrNotFound = errors.New("spot not found")

type CreateSpotRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=120"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Location    string   `json:"location" binding:"omitempty,max=200"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// a full update payload; createdBy is never part of it
type UpdateSpotRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=120"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Location    string   `json:"location" binding:"omitempty,max=200"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}
