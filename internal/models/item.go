package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item is a single expense line entry stored in MongoDB. TotalPrice is
// caller-supplied and stored as-is; it is not required to equal
// Price * Quantity.
type Item struct {
	ID         primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	UserID     string             `json:"user_id"    bson:"user_id"`
	Name       string             `json:"name"       bson:"name"`
	Price      float64            `json:"price"      bson:"price"`
	Quantity   int                `json:"quantity"   bson:"quantity"`
	TotalPrice float64            `json:"totalprice" bson:"totalprice"`
	FormID     string             `json:"form_id"    bson:"form_id"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// ItemDraft is one entry of the create-items request body. Pointer fields
// distinguish "absent" from zero so the batch validator can reject
// incomplete drafts.
type ItemDraft struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	Quantity   *int     `json:"quantity"`
	TotalPrice *float64 `json:"totalprice"`
}

// CreateItemsRequest is the JSON body for POST /api/item/create.
type CreateItemsRequest struct {
	Items []ItemDraft `json:"items" validate:"required,min=1"`
}

// ByDateRequest is the JSON body for POST /api/item/by-date.
type ByDateRequest struct {
	Date string `json:"date"`
}

// ListRequest is the JSON body for POST /api/item/month and
// POST /api/item/overall.
type ListRequest struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
}

// Analytics holds the per-window expense sums for a user.
type Analytics struct {
	Today   float64 `json:"today"`
	Week    float64 `json:"week"`
	Month   float64 `json:"month"`
	Overall float64 `json:"overall"`
}
