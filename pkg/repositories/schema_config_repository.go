package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/database"
	"github.com/asklantern/lantern-engine/pkg/models"
)

// SchemaConfigRepository defines the interface for schema configuration
// persistence. At most one document exists per connection; saving replaces
// the whole document rather than appending.
type SchemaConfigRepository interface {
	// Create inserts the first document for a connection. Returns
	// apperrors.ErrConflict if one already exists.
	Create(ctx context.Context, stored *models.StoredSchemaConfig) error

	// GetByConnectionID retrieves the document for a connection. Legacy
	// documents are upgraded to the canonical shape on read.
	GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error)

	// Replace overwrites the document if last_modified still equals
	// expectedLastModified, and returns the new last_modified. Returns
	// apperrors.ErrConflict when the document changed underneath the caller
	// and apperrors.ErrNotFound when no document exists.
	Replace(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig, expectedLastModified time.Time) (time.Time, error)

	// Delete removes the document for a connection, if any.
	Delete(ctx context.Context, connectionID uuid.UUID) error
}

type schemaConfigRepository struct {
	db *database.DB
}

// NewSchemaConfigRepository creates a new schema configuration repository.
func NewSchemaConfigRepository(db *database.DB) SchemaConfigRepository {
	return &schemaConfigRepository{db: db}
}

func (r *schemaConfigRepository) Create(ctx context.Context, stored *models.StoredSchemaConfig) error {
	raw, err := json.Marshal(stored.Document)
	if err != nil {
		return fmt.Errorf("failed to encode schema config: %w", err)
	}

	stored.CreatedAt = time.Now()
	stored.LastModified = stored.CreatedAt

	query := `
		INSERT INTO engine_schema_configs (connection_id, user_id, document, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err = r.db.Pool.QueryRow(ctx, query,
		stored.ConnectionID,
		stored.UserID,
		raw,
		stored.CreatedAt,
		stored.LastModified,
	).Scan(&stored.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create schema config: %w", err)
	}
	return nil
}

func (r *schemaConfigRepository) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error) {
	query := `
		SELECT id, connection_id, user_id, document, created_at, last_modified
		FROM engine_schema_configs
		WHERE connection_id = $1`

	var stored models.StoredSchemaConfig
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, connectionID).Scan(
		&stored.ID,
		&stored.ConnectionID,
		&stored.UserID,
		&raw,
		&stored.CreatedAt,
		&stored.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema config: %w", err)
	}

	document, err := models.UpgradeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema config: %w", err)
	}
	stored.Document = document
	return &stored, nil
}

// Replace uses last_modified as a compare-and-swap token so two overlapping
// refreshes of the same connection cannot silently overwrite each other.
func (r *schemaConfigRepository) Replace(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig, expectedLastModified time.Time) (time.Time, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to encode schema config: %w", err)
	}

	query := `
		UPDATE engine_schema_configs
		SET document = $1, last_modified = now()
		WHERE connection_id = $2 AND last_modified = $3
		RETURNING last_modified`

	var lastModified time.Time
	err = r.db.Pool.QueryRow(ctx, query, raw, connectionID, expectedLastModified).Scan(&lastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either no document exists or someone replaced it first.
		var exists bool
		checkErr := r.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM engine_schema_configs WHERE connection_id = $1)`,
			connectionID).Scan(&exists)
		if checkErr != nil {
			return time.Time{}, fmt.Errorf("failed to check schema config existence: %w", checkErr)
		}
		if !exists {
			return time.Time{}, apperrors.ErrNotFound
		}
		return time.Time{}, apperrors.ErrConflict
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to replace schema config: %w", err)
	}
	return lastModified, nil
}

func (r *schemaConfigRepository) Delete(ctx context.Context, connectionID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM engine_schema_configs WHERE connection_id = $1`, connectionID)
	if err != nil {
		return fmt.Errorf("failed to delete schema config: %w", err)
	}
	return nil
}
