package models

import (
	"time"
)

// User represents an authenticated account in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Model represents a registered asset listing in the marketplace
type Model struct {
	ID         string    `db:"id" json:"id"`
	ContentRef string    `db:"content_ref" json:"contentRef"`
	Owner      string    `db:"owner" json:"owner"`
	ForSale    bool      `db:"for_sale" json:"forSale"`
	SalePrice  int64     `db:"sale_price" json:"salePrice"`
	ForRent    bool      `db:"for_rent" json:"forRent"`
	RentPrice  int64     `db:"rent_price" json:"rentPrice"`
	CreatedBy  string    `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Rating represents a one-time review of a model by a rater.
// At most one rating exists per (model, rater) pair and it is
// immutable once set.
type Rating struct {
	ModelID   string    `db:"model_id" json:"modelId"`
	Rater     string    `db:"rater" json:"rater"`
	Score     int       `db:"score" json:"score"` // 1-5 inclusive
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Profile holds a user's self-declared decentralized identifier
type Profile struct {
	Identity  string    `db:"identity" json:"identity"`
	DID       string    `db:"did" json:"did"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Event types recorded in the marketplace event log
const (
	EventModelUploaded  = "model.uploaded"
	EventModelUpdated   = "model.updated"
	EventModelPurchased = "model.purchased"
	EventModelRented    = "model.rented"
	EventModelRated     = "model.rated"
)

// Event is one tagged record in the append-only marketplace log.
// Amount is set for purchase/rent events, Score and Comment for
// rating events.
type Event struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`
	ModelID   string    `db:"model_id" json:"modelId"`
	Actor     string    `db:"actor" json:"actor"`
	Amount    int64     `db:"amount" json:"amount"`
	Score     int       `db:"score" json:"score"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Payment is one settled transfer recorded by the payment ledger
type Payment struct {
	ID        string    `db:"id" json:"id"`
	Payer     string    `db:"payer" json:"payer"`
	Recipient string    `db:"recipient" json:"recipient"`
	Amount    int64     `db:"amount" json:"amount"`
	ModelID   string    `db:"model_id" json:"modelId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
