package repositories

import (
	"context"
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

// ConnectionRepository defines the interface for connection data access.
// Credentials are stored as encrypted TEXT; encryption and decryption happen
// in the service layer, never here.
type ConnectionRepository interface {
	// Create inserts a new connection. Returns apperrors.ErrConflict if the
	// (user, name) pair already exists.
	Create(ctx context.Context, conn *models.Connection, encryptedConfig string) error

	// GetByID retrieves a connection and its encrypted config.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, string, error)

	// ListByUser retrieves all connections owned by a user, newest first.
	// Encrypted configs are not returned.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)

	// UpdateConfig replaces a connection's encrypted config.
	UpdateConfig(ctx context.Context, id uuid.UUID, encryptedConfig string) error

	// Rename updates only the name of a connection.
	Rename(ctx context.Context, id uuid.UUID, name string) error

	// TouchLastUsed updates the connection's last_used timestamp.
	TouchLastUsed(ctx context.Context, id uuid.UUID) error

	// Delete removes a connection; its schema configuration cascades.
	Delete(ctx context.Context, id uuid.UUID) error
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection, encryptedConfig string) error {
	conn.CreatedAt = time.Now()

	query := `
		INSERT INTO engine_connections (user_id, name, source_type, credentials, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		conn.UserID,
		conn.Name,
		conn.SourceType,
		encryptedConfig,
		conn.CreatedAt,
	).Scan(&conn.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, string, error) {
	query := `
		SELECT id, user_id, name, source_type, credentials, created_at, last_used
		FROM engine_connections
		WHERE id = $1`

	var conn models.Connection
	var encryptedConfig string
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Name,
		&conn.SourceType,
		&encryptedConfig,
		&conn.CreatedAt,
		&conn.LastUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperrors.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get connection: %w", err)
	}
	return &conn, encryptedConfig, nil
}

func (r *connectionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	query := `
		SELECT id, user_id, name, source_type, created_at, last_used
		FROM engine_connections
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		if err := rows.Scan(&conn.ID, &conn.UserID, &conn.Name, &conn.SourceType, &conn.CreatedAt, &conn.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return connections, nil
}

func (r *connectionRepository) UpdateConfig(ctx context.Context, id uuid.UUID, encryptedConfig string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE engine_connections SET credentials = $1 WHERE id = $2`,
		encryptedConfig, id)
	if err != nil {
		return fmt.Errorf("failed to update connection config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE engine_connections SET name = $1 WHERE id = $2`,
		name, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to rename connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE engine_connections SET last_used = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM engine_connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
