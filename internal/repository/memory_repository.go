package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexml/marketplace-server/internal/models"
)

// MemoryRepository implements the Repository interface with in-process
// maps. It backs the registry when no database is configured and is the
// storage used by the test suites. A single mutex serializes mutations,
// which matches the one-in-flight-mutation model the engine assumes.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[string]*models.User   // by id
	usersByEmail map[string]*models.User   // by email
	modelsByID   map[string]*models.Model  // by id
	userModels   map[string][]string       // creator -> ordered model ids
	renters      map[string][]string       // model id -> ordered renter identities
	ratings      map[string]*models.Rating // model id + "\x00" + rater
	profiles     map[string]*models.Profile
	events       map[string][]models.Event // model id -> ordered events
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]*models.User),
		usersByEmail: make(map[string]*models.User),
		modelsByID:   make(map[string]*models.Model),
		userModels:   make(map[string][]string),
		renters:      make(map[string][]string),
		ratings:      make(map[string]*models.Rating),
		profiles:     make(map[string]*models.Profile),
		events:       make(map[string][]models.Event),
	}
}

func ratingKey(modelID, rater string) string {
	return modelID + "\x00" + rater
}

// User methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	u := *user
	r.users[u.ID] = &u
	r.usersByEmail[u.Email] = &u

	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.usersByEmail[email]
	if !ok {
		return nil, nil
	}

	u := *user
	return &u, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}

	u := *user
	return &u, nil
}

// Model catalog methods
func (r *MemoryRepository) CreateModel(ctx context.Context, model *models.Model, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model.ID == "" {
		model.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	m := *model
	r.modelsByID[m.ID] = &m
	r.userModels[m.CreatedBy] = append(r.userModels[m.CreatedBy], m.ID)
	r.appendEventLocked(event)

	return nil
}

func (r *MemoryRepository) GetModel(ctx context.Context, modelID string) (*models.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.modelsByID[modelID]
	if !ok {
		return nil, nil
	}

	m := *model
	return &m, nil
}

func (r *MemoryRepository) UpdateModel(ctx context.Context, model *models.Model, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.modelsByID[model.ID]
	if !ok {
		return nil
	}

	model.UpdatedAt = time.Now().UTC()
	stored.ContentRef = model.ContentRef
	stored.ForSale = model.ForSale
	stored.SalePrice = model.SalePrice
	stored.ForRent = model.ForRent
	stored.RentPrice = model.RentPrice
	stored.UpdatedAt = model.UpdatedAt
	r.appendEventLocked(event)

	return nil
}

func (r *MemoryRepository) TransferModel(ctx context.Context, modelID, newOwner string, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.modelsByID[modelID]
	if !ok {
		return nil
	}

	stored.Owner = newOwner
	stored.UpdatedAt = time.Now().UTC()
	r.appendEventLocked(event)

	return nil
}

func (r *MemoryRepository) GetUserModels(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.userModels[userID]
	out := make([]string, len(ids))
	copy(out, ids)

	return out, nil
}

// Rental record methods
func (r *MemoryRepository) AddRenter(ctx context.Context, modelID, renter string, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renters[modelID] = append(r.renters[modelID], renter)
	r.appendEventLocked(event)

	return nil
}

func (r *MemoryRepository) GetModelRenters(ctx context.Context, modelID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	renters := r.renters[modelID]
	out := make([]string, len(renters))
	copy(out, renters)

	return out, nil
}

// Rating ledger methods
func (r *MemoryRepository) AddRating(ctx context.Context, rating *models.Rating, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	rt := *rating
	r.ratings[ratingKey(rt.ModelID, rt.Rater)] = &rt
	r.appendEventLocked(event)

	return nil
}

func (r *MemoryRepository) GetRating(ctx context.Context, modelID, rater string) (*models.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rating, ok := r.ratings[ratingKey(modelID, rater)]
	if !ok {
		return nil, nil
	}

	rt := *rating
	return &rt, nil
}

func (r *MemoryRepository) GetModelRatings(ctx context.Context, modelID string) ([]models.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ratings []models.Rating
	for _, rt := range r.ratings {
		if rt.ModelID == modelID {
			ratings = append(ratings, *rt)
		}
	}

	return ratings, nil
}

// Identity directory methods
func (r *MemoryRepository) SetProfile(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile.UpdatedAt = time.Now().UTC()
	p := *profile
	r.profiles[p.Identity] = &p

	return nil
}

func (r *MemoryRepository) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[identity]
	if !ok {
		return nil, nil
	}

	p := *profile
	return &p, nil
}

// Event log methods
func (r *MemoryRepository) appendEventLocked(event *models.Event) {
	if event == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	r.events[event.ModelID] = append(r.events[event.ModelID], *event)
}

func (r *MemoryRepository) GetModelEvents(ctx context.Context, modelID string) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[modelID]
	out := make([]models.Event, len(events))
	copy(out, events)

	return out, nil
}
