package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexml/marketplace-server/internal/models"
)

// Repository interface defines the methods that any storage implementation
// must satisfy. Reads return nil (not an error) when the record is absent;
// mutations that carry an event commit the record and the event atomically.
type Repository interface {
	// User accounts
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Model catalog
	CreateModel(ctx context.Context, model *models.Model, event *models.Event) error
	GetModel(ctx context.Context, modelID string) (*models.Model, error)
	UpdateModel(ctx context.Context, model *models.Model, event *models.Event) error
	TransferModel(ctx context.Context, modelID, newOwner string, event *models.Event) error
	GetUserModels(ctx context.Context, userID string) ([]string, error)

	// Rental record
	AddRenter(ctx context.Context, modelID, renter string, event *models.Event) error
	GetModelRenters(ctx context.Context, modelID string) ([]string, error)

	// Rating ledger
	AddRating(ctx context.Context, rating *models.Rating, event *models.Event) error
	GetRating(ctx context.Context, modelID, rater string) (*models.Rating, error)
	GetModelRatings(ctx context.Context, modelID string) ([]models.Rating, error)

	// Identity directory
	SetProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, identity string) (*models.Profile, error)

	// Event log
	GetModelEvents(ctx context.Context, modelID string) ([]models.Event, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Model catalog methods
func (r *PostgresRepository) CreateModel(ctx context.Context, model *models.Model, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if model.ID == "" {
		model.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	query := `
		INSERT INTO models (id, content_ref, owner, for_sale, sale_price, for_rent, rent_price, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.ExecContext(ctx, query,
		model.ID, model.ContentRef, model.Owner, model.ForSale, model.SalePrice,
		model.ForRent, model.RentPrice, model.CreatedBy, model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return err
	}

	// Append to the creator's index at the next position. The index records
	// creation history only; it is never rewritten on ownership transfer.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_models (user_id, model_id, position)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM user_models WHERE user_id = $1`,
		model.CreatedBy, model.ID)
	if err != nil {
		return err
	}

	err = r.appendEventTx(ctx, tx, event)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetModel(ctx context.Context, modelID string) (*models.Model, error) {
	query := `SELECT * FROM models WHERE id = $1`

	var model models.Model
	err := r.db.GetContext(ctx, &model, query, modelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Model not found
		}
		return nil, err
	}

	return &model, nil
}

func (r *PostgresRepository) UpdateModel(ctx context.Context, model *models.Model, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	model.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE models
		SET content_ref = $1, for_sale = $2, sale_price = $3, for_rent = $4, rent_price = $5, updated_at = $6
		WHERE id = $7
	`

	_, err = tx.ExecContext(ctx, query,
		model.ContentRef, model.ForSale, model.SalePrice,
		model.ForRent, model.RentPrice, model.UpdatedAt, model.ID)
	if err != nil {
		return err
	}

	err = r.appendEventTx(ctx, tx, event)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) TransferModel(ctx context.Context, modelID, newOwner string, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Only the owner column changes on purchase; sale/rent flags, prices
	// and the creator's index are untouched.
	_, err = tx.ExecContext(ctx,
		`UPDATE models SET owner = $1, updated_at = $2 WHERE id = $3`,
		newOwner, time.Now().UTC(), modelID)
	if err != nil {
		return err
	}

	err = r.appendEventTx(ctx, tx, event)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetUserModels(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT model_id FROM user_models WHERE user_id = $1 ORDER BY position ASC`

	var modelIDs []string
	err := r.db.SelectContext(ctx, &modelIDs, query, userID)
	if err != nil {
		return nil, err
	}

	return modelIDs, nil
}

// Rental record methods
func (r *PostgresRepository) AddRenter(ctx context.Context, modelID, renter string, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Append-only; the same renter may appear multiple times.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO model_renters (model_id, renter, position)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM model_renters WHERE model_id = $1`,
		modelID, renter)
	if err != nil {
		return err
	}

	err = r.appendEventTx(ctx, tx, event)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetModelRenters(ctx context.Context, modelID string) ([]string, error) {
	query := `SELECT renter FROM model_renters WHERE model_id = $1 ORDER BY position ASC`

	var renters []string
	err := r.db.SelectContext(ctx, &renters, query, modelID)
	if err != nil {
		return nil, err
	}

	return renters, nil
}

// Rating ledger methods
func (r *PostgresRepository) AddRating(ctx context.Context, rating *models.Rating, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ratings (model_id, rater, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = tx.ExecContext(ctx, query,
		rating.ModelID, rating.Rater, rating.Score, rating.Comment, rating.CreatedAt)
	if err != nil {
		return err
	}

	err = r.appendEventTx(ctx, tx, event)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetRating(ctx context.Context, modelID, rater string) (*models.Rating, error) {
	query := `SELECT * FROM ratings WHERE model_id = $1 AND rater = $2`

	var rating models.Rating
	err := r.db.GetContext(ctx, &rating, query, modelID, rater)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No rating yet
		}
		return nil, err
	}

	return &rating, nil
}

func (r *PostgresRepository) GetModelRatings(ctx context.Context, modelID string) ([]models.Rating, error) {
	query := `SELECT * FROM ratings WHERE model_id = $1 ORDER BY created_at ASC`

	var ratings []models.Rating
	err := r.db.SelectContext(ctx, &ratings, query, modelID)
	if err != nil {
		return nil, err
	}

	return ratings, nil
}

// Identity directory methods
func (r *PostgresRepository) SetProfile(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO profiles (identity, did, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET did = $2, updated_at = $3
	`

	_, err := r.db.ExecContext(ctx, query, profile.Identity, profile.DID, profile.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	query := `SELECT * FROM profiles WHERE identity = $1`

	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, query, identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Profile never set
		}
		return nil, err
	}

	return &profile, nil
}

// Event log methods
// appendEventTx writes an event within an existing transaction so the
// record and its event commit or roll back together.
func (r *PostgresRepository) appendEventTx(ctx context.Context, tx *sql.Tx, event *models.Event) error {
	if event == nil {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO events (id, type, model_id, actor, amount, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.ExecContext(ctx, query,
		event.ID, event.Type, event.ModelID, event.Actor,
		event.Amount, event.Score, event.Comment, event.CreatedAt)

	return err
}

func (r *PostgresRepository) GetModelEvents(ctx context.Context, modelID string) ([]models.Event, error) {
	query := `SELECT * FROM events WHERE model_id = $1 ORDER BY created_at ASC`

	var events []models.Event
	err := r.db.SelectContext(ctx, &events, query, modelID)
	if err != nil {
		return nil, err
	}

	return events, nil
}
