package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nexml/marketplace-server/internal/models"
	"github.com/nexml/marketplace-server/internal/payment"
	"github.com/nexml/marketplace-server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations. Every marketplace
// mutation takes the trusted caller identity supplied by the auth layer.
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Listing lifecycle
	UploadModel(ctx context.Context, caller string, req models.UploadModelRequest) (*models.Model, error)
	UpdateModelState(ctx context.Context, caller, modelID string, req models.UpdateModelRequest) error
	GetModel(ctx context.Context, modelID string) (*models.Model, error)
	GetUserModels(ctx context.Context, userID string) ([]string, error)

	// Transactions
	PurchaseModel(ctx context.Context, caller, modelID string, paidAmount int64) error
	RentModel(ctx context.Context, caller, modelID string, paidAmount int64) error
	GetModelRenters(ctx context.Context, modelID string) ([]string, error)

	// Ratings
	RateModel(ctx context.Context, caller, modelID string, score int, comment string) error
	GetModelRatings(ctx context.Context, modelID string) ([]models.Rating, error)

	// Identity directory
	SetDID(ctx context.Context, caller, did string) error
	GetUserProfile(ctx context.Context, identity string) (*models.Profile, error)

	// Event log
	GetModelEvents(ctx context.Context, modelID string) ([]models.Event, error)
}

// MarketplaceService implements the Service interface
type MarketplaceService struct {
	repo          repository.Repository
	settler       payment.Settler
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewMarketplaceService creates a new MarketplaceService
func NewMarketplaceService(repo repository.Repository, settler payment.Settler, jwtSecret string) Service {
	return &MarketplaceService{
		repo:          repo,
		settler:       settler,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *MarketplaceService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, conflict("user with this email already exists")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *MarketplaceService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, forbidden("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, forbidden("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Listing lifecycle methods
func (s *MarketplaceService) UploadModel(
	ctx context.Context,
	caller string,
	req models.UploadModelRequest,
) (*models.Model, error) {
	// Validation order is contractual: content ref, then sale price,
	// then rent price. Tests depend on which error fires first.
	if req.ContentRef == "" {
		return nil, invalidInput("content reference is required")
	}

	if req.ForSale && req.SalePrice <= 0 {
		return nil, invalidInput("sale price is required")
	}

	if req.ForRent && req.RentPrice <= 0 {
		return nil, invalidInput("rent price is required")
	}

	model := &models.Model{
		ID:         uuid.New().String(),
		ContentRef: req.ContentRef,
		Owner:      caller,
		ForSale:    req.ForSale,
		SalePrice:  req.SalePrice,
		ForRent:    req.ForRent,
		RentPrice:  req.RentPrice,
		CreatedBy:  caller,
	}

	event := &models.Event{
		Type:    models.EventModelUploaded,
		ModelID: model.ID,
		Actor:   caller,
	}

	if err := s.repo.CreateModel(ctx, model, event); err != nil {
		return nil, fmt.Errorf("error creating model: %w", err)
	}

	return model, nil
}

func (s *MarketplaceService) UpdateModelState(
	ctx context.Context,
	caller string,
	modelID string,
	req models.UpdateModelRequest,
) error {
	model, err := s.repo.GetModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("error getting model: %w", err)
	}

	if model == nil {
		return notFound("model does not exist")
	}

	if model.Owner != caller {
		return forbidden("caller is not the model owner")
	}

	// Unlike upload, update does not re-check field validity. The owner
	// may park a listing in any state; creation remains the only gate.
	model.ContentRef = req.ContentRef
	model.ForSale = req.ForSale
	model.SalePrice = req.SalePrice
	model.ForRent = req.ForRent
	model.RentPrice = req.RentPrice

	event := &models.Event{
		Type:    models.EventModelUpdated,
		ModelID: model.ID,
		Actor:   caller,
	}

	if err := s.repo.UpdateModel(ctx, model, event); err != nil {
		return fmt.Errorf("error updating model: %w", err)
	}

	return nil
}

func (s *MarketplaceService) GetModel(ctx context.Context, modelID string) (*models.Model, error) {
	model, err := s.repo.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("error getting model: %w", err)
	}

	if model == nil {
		return nil, notFound("model does not exist")
	}

	return model, nil
}

func (s *MarketplaceService) GetUserModels(ctx context.Context, userID string) ([]string, error) {
	modelIDs, err := s.repo.GetUserModels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user models: %w", err)
	}

	return modelIDs, nil
}

// Transaction methods
func (s *MarketplaceService) PurchaseModel(
	ctx context.Context,
	caller string,
	modelID string,
	paidAmount int64,
) error {
	model, err := s.repo.GetModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("error getting model: %w", err)
	}

	if model == nil {
		return notFound("model does not exist")
	}

	if !model.ForSale {
		return invalidState("model is not for sale")
	}

	if model.Owner == caller {
		return forbidden("owner cannot purchase their own model")
	}

	// There is no change-making mechanism, so the payment must match
	// the listed price exactly.
	if paidAmount != model.SalePrice {
		return invalidInput("incorrect payment amount")
	}

	// Settlement to the prior owner must fully succeed before the
	// ownership transfer commits.
	if err := s.settler.Transfer(ctx, caller, model.Owner, paidAmount, model.ID); err != nil {
		return fmt.Errorf("error settling payment: %w", err)
	}

	event := &models.Event{
		Type:    models.EventModelPurchased,
		ModelID: model.ID,
		Actor:   caller,
		Amount:  paidAmount,
	}

	if err := s.repo.TransferModel(ctx, model.ID, caller, event); err != nil {
		return fmt.Errorf("error transferring model: %w", err)
	}

	return nil
}

func (s *MarketplaceService) RentModel(
	ctx context.Context,
	caller string,
	modelID string,
	paidAmount int64,
) error {
	model, err := s.repo.GetModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("error getting model: %w", err)
	}

	if model == nil {
		return notFound("model does not exist")
	}

	if !model.ForRent {
		return invalidState("model is not for rent")
	}

	if model.Owner == caller {
		return forbidden("owner cannot rent their own model")
	}

	if paidAmount != model.RentPrice {
		return invalidInput("incorrect payment amount")
	}

	if err := s.settler.Transfer(ctx, caller, model.Owner, paidAmount, model.ID); err != nil {
		return fmt.Errorf("error settling payment: %w", err)
	}

	event := &models.Event{
		Type:    models.EventModelRented,
		ModelID: model.ID,
		Actor:   caller,
		Amount:  paidAmount,
	}

	// Rentals are a participation log, not a lease: no exclusivity, no
	// end time, and repeat rentals each append a new entry.
	if err := s.repo.AddRenter(ctx, model.ID, caller, event); err != nil {
		return fmt.Errorf("error recording rental: %w", err)
	}

	return nil
}

func (s *MarketplaceService) GetModelRenters(ctx context.Context, modelID string) ([]string, error) {
	renters, err := s.repo.GetModelRenters(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("error getting model renters: %w", err)
	}

	return renters, nil
}

// Rating methods
func (s *MarketplaceService) RateModel(
	ctx context.Context,
	caller string,
	modelID string,
	score int,
	comment string,
) error {
	model, err := s.repo.GetModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("error getting model: %w", err)
	}

	if model == nil {
		return notFound("model does not exist")
	}

	if score < 1 || score > 5 {
		return invalidInput("rating must be between 1 and 5")
	}

	// Owners may rate their own model; the only restriction is one
	// rating per rater per model.
	existing, err := s.repo.GetRating(ctx, modelID, caller)
	if err != nil {
		return fmt.Errorf("error checking existing rating: %w", err)
	}

	if existing != nil {
		return conflict("rater has already reviewed this model")
	}

	rating := &models.Rating{
		ModelID: modelID,
		Rater:   caller,
		Score:   score,
		Comment: comment,
	}

	event := &models.Event{
		Type:    models.EventModelRated,
		ModelID: modelID,
		Actor:   caller,
		Score:   score,
		Comment: comment,
	}

	if err := s.repo.AddRating(ctx, rating, event); err != nil {
		return fmt.Errorf("error adding rating: %w", err)
	}

	return nil
}

func (s *MarketplaceService) GetModelRatings(ctx context.Context, modelID string) ([]models.Rating, error) {
	ratings, err := s.repo.GetModelRatings(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("error getting model ratings: %w", err)
	}

	return ratings, nil
}

// Identity directory methods
func (s *MarketplaceService) SetDID(ctx context.Context, caller, did string) error {
	if did == "" {
		return invalidInput("DID is required")
	}

	profile := &models.Profile{
		Identity: caller,
		DID:      did,
	}

	if err := s.repo.SetProfile(ctx, profile); err != nil {
		return fmt.Errorf("error setting profile: %w", err)
	}

	return nil
}

func (s *MarketplaceService) GetUserProfile(ctx context.Context, identity string) (*models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("error getting profile: %w", err)
	}

	if profile == nil {
		// Never-set profiles read back as an empty default, not an error.
		return &models.Profile{Identity: identity}, nil
	}

	return profile, nil
}

// Event log methods
func (s *MarketplaceService) GetModelEvents(ctx context.Context, modelID string) ([]models.Event, error) {
	events, err := s.repo.GetModelEvents(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("error getting model events: %w", err)
	}

	return events, nil
}

// Helper methods
func (s *MarketplaceService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
