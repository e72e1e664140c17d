package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant belongs to one owner principal. Inactive restaurants cannot
// receive new orders.
type Restaurant struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MenuItem belongs to exactly one restaurant.
type MenuItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Category     *string         `json:"category,omitempty"`
	Price        decimal.Decimal `json:"price"`
	IsAvailable  bool            `json:"is_available"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateRestaurantRequest opens a restaurant for the calling principal.
type CreateRestaurantRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description,omitempty"`
	Address     string   `json:"address" validate:"required"`
	Phone       string   `json:"phone" validate:"required"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// UpsertMenuItemRequest creates or updates one menu item.
type UpsertMenuItemRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Price       string  `json:"price" validate:"required"`
	IsAvailable *bool   `json:"is_available,omitempty"`
}
