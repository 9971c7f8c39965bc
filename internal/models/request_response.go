package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UploadModelRequest carries every mutable field of a listing.
// Field validity (content ref, conditional prices) is checked by the
// service, not by binding tags, so that validation order and error
// kinds stay under the engine's control.
type UploadModelRequest struct {
	ContentRef string `json:"contentRef"`
	ForRent    bool   `json:"forRent"`
	ForSale    bool   `json:"forSale"`
	RentPrice  int64  `json:"rentPrice"`
	SalePrice  int64  `json:"salePrice"`
}

// UpdateModelRequest mirrors UploadModelRequest; the id travels in the URL
type UpdateModelRequest struct {
	ContentRef string `json:"contentRef"`
	ForRent    bool   `json:"forRent"`
	ForSale    bool   `json:"forSale"`
	RentPrice  int64  `json:"rentPrice"`
	SalePrice  int64  `json:"salePrice"`
}

type PaymentRequest struct {
	Amount int64 `json:"amount"`
}

type RateModelRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type SetDIDRequest struct {
	DID string `json:"did"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type UploadModelResponse struct {
	Status    string `json:"status"`
	ModelID   string `json:"modelId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type UserModelsResponse struct {
	Status   string   `json:"status"`
	UserID   string   `json:"userId"`
	ModelIDs []string `json:"modelIds"`
}

type ModelRentersResponse struct {
	Status  string   `json:"status"`
	ModelID string   `json:"modelId"`
	Renters []string `json:"renters"`
}

type ModelRatingsResponse struct {
	Status  string   `json:"status"`
	ModelID string   `json:"modelId"`
	Ratings []Rating `json:"ratings"`
}

type ModelEventsResponse struct {
	Status  string  `json:"status"`
	ModelID string  `json:"modelId"`
	Events  []Event `json:"events"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
