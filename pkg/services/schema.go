package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/repositories"
	"github.com/asklantern/lantern-engine/pkg/schema"
)

// DefaultInspectTimeout bounds a whole introspection round-trip.
const DefaultInspectTimeout = 2 * time.Minute

// RefreshResult reports the outcome of an introspection or refresh,
// including the soft-failure flags the caller must surface to the user.
type RefreshResult struct {
	Document *models.SchemaConfig `json:"document"`

	// TableCount is the number of tables in the resulting document.
	TableCount int `json:"table_count"`

	// PKDegraded is true when primary-key metadata could not be read and
	// every column was recorded as non-key.
	PKDegraded bool `json:"pk_degraded"`

	// MergeFellBack is true when the merge step failed internally and the
	// unannotated fresh structure was persisted instead. The user's
	// annotations were lost and they deserve to know.
	MergeFellBack bool `json:"merge_fell_back"`
}

// SchemaService owns the schema configuration lifecycle: first
// introspection, smart refresh, annotation edits and reads.
type SchemaService interface {
	// CreateInitial introspects the source for the first time and persists
	// the fresh document as-is, no merge. Fails if a document already
	// exists for the connection.
	CreateInitial(ctx context.Context, connectionID uuid.UUID) (*RefreshResult, error)

	// SmartRefresh re-introspects the source, merges the fresh structure
	// with the stored annotations and replaces the stored document. A
	// failed refresh leaves the prior document completely untouched.
	SmartRefresh(ctx context.Context, connectionID uuid.UUID) (*RefreshResult, error)

	// Get returns the stored document, or apperrors.ErrNotFound.
	Get(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error)

	// Save replaces the whole document from the annotation editor.
	Save(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig) error

	// SetTableDescription updates one table's annotation.
	SetTableDescription(ctx context.Context, connectionID uuid.UUID, table, description string) error

	// SetFieldDescription updates one field's annotation.
	SetFieldDescription(ctx context.Context, connectionID uuid.UUID, table, field, description string) error

	// SetBusinessContext replaces the document's business context.
	SetBusinessContext(ctx context.Context, connectionID uuid.UUID, bc models.BusinessContext) error

	// SetOptimizationRules replaces the document's optimization rules.
	SetOptimizationRules(ctx context.Context, connectionID uuid.UUID, rules []string) error

	// ImportDocument parses a YAML or JSON schema configuration export,
	// upgrades legacy layouts and stores it for the connection, replacing
	// any existing document.
	ImportDocument(ctx context.Context, connectionID uuid.UUID, raw []byte) (*models.SchemaConfig, error)
}

type schemaService struct {
	schemaRepo     repositories.SchemaConfigRepository
	connections    ConnectionService
	inspectTimeout time.Duration
	logger         *zap.Logger

	// refreshMu serializes refreshes per connection so two overlapping
	// smart refreshes cannot interleave read-merge-write.
	mu        sync.Mutex
	refreshMu map[uuid.UUID]*sync.Mutex
}

// NewSchemaService creates a new schema service with dependencies.
// inspectTimeout bounds each introspection; zero means DefaultInspectTimeout.
func NewSchemaService(
	schemaRepo repositories.SchemaConfigRepository,
	connections ConnectionService,
	inspectTimeout time.Duration,
	logger *zap.Logger,
) SchemaService {
	if inspectTimeout <= 0 {
		inspectTimeout = DefaultInspectTimeout
	}
	return &schemaService{
		schemaRepo:     schemaRepo,
		connections:    connections,
		inspectTimeout: inspectTimeout,
		logger:         logger,
		refreshMu:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *schemaService) connectionLock(connectionID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.refreshMu[connectionID]
	if !ok {
		lock = &sync.Mutex{}
		s.refreshMu[connectionID] = lock
	}
	return lock
}

// inspect acquires a handle and introspects under the configured timeout.
func (s *schemaService) inspect(ctx context.Context, connectionID uuid.UUID) (*datasource.InspectResult, string, error) {
	handle, conn, err := s.connections.AcquireHandle(ctx, connectionID)
	if err != nil {
		return nil, "", err
	}

	inspectCtx, cancel := context.WithTimeout(ctx, s.inspectTimeout)
	defer cancel()

	result, err := handle.Inspect(inspectCtx)
	if err != nil {
		return nil, "", err
	}
	return result, conn.SourceType, nil
}

func (s *schemaService) CreateInitial(ctx context.Context, connectionID uuid.UUID) (*RefreshResult, error) {
	lock := s.connectionLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	inspected, _, err := s.inspect(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	stored := &models.StoredSchemaConfig{
		ConnectionID: connectionID,
		UserID:       conn.UserID,
		Document:     inspected.Schema,
	}
	if err := s.schemaRepo.Create(ctx, stored); err != nil {
		return nil, err
	}

	s.logger.Info("created initial schema config",
		zap.String("connectionID", connectionID.String()),
		zap.Int("tables", len(inspected.Schema.Tables)),
		zap.Bool("pkDegraded", inspected.PKDegraded),
	)
	return &RefreshResult{
		Document:   inspected.Schema,
		TableCount: len(inspected.Schema.Tables),
		PKDegraded: inspected.PKDegraded,
	}, nil
}

func (s *schemaService) SmartRefresh(ctx context.Context, connectionID uuid.UUID) (*RefreshResult, error) {
	lock := s.connectionLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.schemaRepo.GetByConnectionID(ctx, connectionID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	inspected, sourceType, err := s.inspect(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	// No prior document: this is a first introspection, not a merge.
	if current == nil {
		conn, err := s.connections.Get(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		stored := &models.StoredSchemaConfig{
			ConnectionID: connectionID,
			UserID:       conn.UserID,
			Document:     inspected.Schema,
		}
		if err := s.schemaRepo.Create(ctx, stored); err != nil {
			return nil, err
		}
		return &RefreshResult{
			Document:   inspected.Schema,
			TableCount: len(inspected.Schema.Tables),
			PKDegraded: inspected.PKDegraded,
		}, nil
	}

	merged, fellBack := s.mergeWithFallback(current.Document, inspected.Schema, datasource.Fold(sourceType))

	if _, err := s.schemaRepo.Replace(ctx, connectionID, merged, current.LastModified); err != nil {
		return nil, err
	}

	s.logger.Info("smart refresh complete",
		zap.String("connectionID", connectionID.String()),
		zap.Int("tables", len(merged.Tables)),
		zap.Bool("pkDegraded", inspected.PKDegraded),
		zap.Bool("mergeFellBack", fellBack),
	)
	return &RefreshResult{
		Document:      merged,
		TableCount:    len(merged.Tables),
		PKDegraded:    inspected.PKDegraded,
		MergeFellBack: fellBack,
	}, nil
}

// mergeWithFallback guards the merge: a refresh must never leave a
// connection with no usable configuration, so any internal merge failure
// falls back to the unannotated fresh structure and reports it.
func (s *schemaService) mergeWithFallback(current, fresh *models.SchemaConfig, fold schema.FoldFunc) (doc *models.SchemaConfig, fellBack bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("schema merge failed, falling back to fresh structure",
				zap.Any("cause", r),
			)
			doc = fresh
			fellBack = true
		}
	}()
	return schema.Merge(current, fresh, fold), false
}

func (s *schemaService) Get(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error) {
	return s.schemaRepo.GetByConnectionID(ctx, connectionID)
}

func (s *schemaService) Save(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig) error {
	if document == nil {
		return fmt.Errorf("document is required")
	}
	return s.update(ctx, connectionID, func(doc *models.SchemaConfig) error {
		*doc = *document.Clone()
		return nil
	})
}

func (s *schemaService) SetTableDescription(ctx context.Context, connectionID uuid.UUID, table, description string) error {
	return s.update(ctx, connectionID, func(doc *models.SchemaConfig) error {
		t, ok := doc.Tables[table]
		if !ok {
			return fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
		}
		t.Description = description
		doc.Tables[table] = t
		return nil
	})
}

func (s *schemaService) SetFieldDescription(ctx context.Context, connectionID uuid.UUID, table, field, description string) error {
	return s.update(ctx, connectionID, func(doc *models.SchemaConfig) error {
		t, ok := doc.Tables[table]
		if !ok {
			return fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
		}
		f, ok := t.Fields[field]
		if !ok {
			return fmt.Errorf("field %q.%q: %w", table, field, apperrors.ErrNotFound)
		}
		f.Description = description
		t.Fields[field] = f
		doc.Tables[table] = t
		return nil
	})
}

func (s *schemaService) SetBusinessContext(ctx context.Context, connectionID uuid.UUID, bc models.BusinessContext) error {
	return s.update(ctx, connectionID, func(doc *models.SchemaConfig) error {
		doc.BusinessContext = models.BusinessContext{
			Description: bc.Description,
			KeyConcepts: append([]string{}, bc.KeyConcepts...),
		}
		return nil
	})
}

func (s *schemaService) SetOptimizationRules(ctx context.Context, connectionID uuid.UUID, rules []string) error {
	return s.update(ctx, connectionID, func(doc *models.SchemaConfig) error {
		doc.QueryGuidelines.OptimizationRules = append([]string{}, rules...)
		return nil
	})
}

func (s *schemaService) ImportDocument(ctx context.Context, connectionID uuid.UUID, raw []byte) (*models.SchemaConfig, error) {
	doc, err := models.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing schema document: %w", err)
	}

	lock := s.connectionLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.schemaRepo.GetByConnectionID(ctx, connectionID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		conn, err := s.connections.Get(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		create := &models.StoredSchemaConfig{
			ConnectionID: connectionID,
			UserID:       conn.UserID,
			Document:     doc,
		}
		if err := s.schemaRepo.Create(ctx, create); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if _, err := s.schemaRepo.Replace(ctx, connectionID, doc, stored.LastModified); err != nil {
			return nil, err
		}
	}

	s.logger.Info("imported schema config",
		zap.String("connectionID", connectionID.String()),
		zap.Int("tables", len(doc.Tables)),
	)
	return doc, nil
}

// update is the read-modify-write path for annotation edits, protected by
// the same compare-and-swap token as refreshes.
func (s *schemaService) update(ctx context.Context, connectionID uuid.UUID, mutate func(*models.SchemaConfig) error) error {
	lock := s.connectionLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.schemaRepo.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return err
	}

	doc := stored.Document.Clone()
	if err := mutate(doc); err != nil {
		return err
	}

	_, err = s.schemaRepo.Replace(ctx, connectionID, doc, stored.LastModified)
	return err
}

var _ SchemaService = (*schemaService)(nil)
