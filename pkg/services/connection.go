package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/crypto"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/repositories"
)

// ConnectionService defines the interface for connection operations.
// Credentials are encrypted before they reach the repository and decrypted
// on the way out; nothing below this layer sees plaintext.
type ConnectionService interface {
	// Create registers a new connection after validating its config against
	// the adapter's required fields.
	Create(ctx context.Context, userID uuid.UUID, name, sourceType string, config map[string]any) (*models.Connection, error)

	// Get retrieves a connection with decrypted config.
	Get(ctx context.Context, id uuid.UUID) (*models.Connection, error)

	// List retrieves all connections owned by a user, without configs.
	List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)

	// UpdateConfig replaces a connection's credentials and invalidates its
	// cached handle.
	UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error

	// Rename updates only the connection's name.
	Rename(ctx context.Context, id uuid.UUID, name string) error

	// Delete removes the connection, its cached handle and, by cascade, its
	// schema configuration.
	Delete(ctx context.Context, id uuid.UUID) error

	// Test reports whether a working handle can be obtained. Never returns
	// an error; failures are reported as false.
	Test(ctx context.Context, id uuid.UUID) bool

	// AcquireHandle returns a live handle for the connection and touches
	// its last_used timestamp.
	AcquireHandle(ctx context.Context, id uuid.UUID) (datasource.Handle, *models.Connection, error)
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	encryptor *crypto.CredentialEncryptor
	connMgr   *datasource.ConnectionManager
	logger    *zap.Logger
}

// NewConnectionService creates a new connection service with dependencies.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	encryptor *crypto.CredentialEncryptor,
	connMgr *datasource.ConnectionManager,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		encryptor: encryptor,
		connMgr:   connMgr,
		logger:    logger,
	}
}

func (s *connectionService) Create(ctx context.Context, userID uuid.UUID, name, sourceType string, config map[string]any) (*models.Connection, error) {
	if name == "" {
		return nil, fmt.Errorf("connection name is required")
	}
	if config == nil {
		config = make(map[string]any)
	}

	if violations := datasource.ValidateConfig(sourceType, config); len(violations) > 0 {
		fields := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, v.Field)
		}
		return nil, apperrors.NewConfigError(sourceType, "missing or empty required fields", fields...)
	}

	encrypted, err := s.encryptor.EncryptConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	conn := &models.Connection{
		UserID:     userID,
		Name:       name,
		SourceType: sourceType,
		Config:     config,
	}
	if err := s.repo.Create(ctx, conn, encrypted); err != nil {
		return nil, err
	}

	s.logger.Info("created connection",
		zap.String("id", conn.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("sourceType", sourceType),
	)
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	conn, encrypted, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	config, err := s.encryptor.DecryptConfig(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config: %w", err)
	}
	conn.Config = config
	return conn, nil
}

func (s *connectionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *connectionService) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error {
	conn, _, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if violations := datasource.ValidateConfig(conn.SourceType, config); len(violations) > 0 {
		fields := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, v.Field)
		}
		return apperrors.NewConfigError(conn.SourceType, "missing or empty required fields", fields...)
	}

	encrypted, err := s.encryptor.EncryptConfig(config)
	if err != nil {
		return fmt.Errorf("failed to encrypt config: %w", err)
	}
	if err := s.repo.UpdateConfig(ctx, id, encrypted); err != nil {
		return err
	}

	// The cached handle was built from the old credentials.
	s.connMgr.Invalidate(id)

	s.logger.Info("updated connection config", zap.String("id", id.String()))
	return nil
}

func (s *connectionService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("connection name is required")
	}
	return s.repo.Rename(ctx, id, name)
}

func (s *connectionService) Delete(ctx context.Context, id uuid.UUID) error {
	s.connMgr.Invalidate(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted connection", zap.String("id", id.String()))
	return nil
}

func (s *connectionService) Test(ctx context.Context, id uuid.UUID) bool {
	conn, err := s.Get(ctx, id)
	if err != nil {
		s.logger.Info("connection test failed to load connection",
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return false
	}
	return s.connMgr.Test(ctx, conn)
}

func (s *connectionService) AcquireHandle(ctx context.Context, id uuid.UUID) (datasource.Handle, *models.Connection, error) {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	handle, err := s.connMgr.GetHandle(ctx, conn)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.TouchLastUsed(ctx, id); err != nil {
		s.logger.Warn("failed to update last_used",
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
	return handle, conn, nil
}

var _ ConnectionService = (*connectionService)(nil)
