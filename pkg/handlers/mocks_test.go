package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
)

var errNotImplemented = errors.New("not implemented in mock")

// mockConnectionService implements services.ConnectionService with
// overridable funcs per method.
type mockConnectionService struct {
	createFunc func(ctx context.Context, userID uuid.UUID, name, sourceType string, config map[string]any) (*models.Connection, error)
	getFunc    func(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	listFunc   func(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	updateFunc func(ctx context.Context, id uuid.UUID, config map[string]any) error
	renameFunc func(ctx context.Context, id uuid.UUID, name string) error
	deleteFunc func(ctx context.Context, id uuid.UUID) error
	testFunc   func(ctx context.Context, id uuid.UUID) bool
}

func (m *mockConnectionService) Create(ctx context.Context, userID uuid.UUID, name, sourceType string, config map[string]any) (*models.Connection, error) {
	if m.createFunc == nil {
		return nil, errNotImplemented
	}
	return m.createFunc(ctx, userID, name, sourceType, config)
}

func (m *mockConnectionService) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	if m.getFunc == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.getFunc(ctx, id)
}

func (m *mockConnectionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	if m.listFunc == nil {
		return nil, errNotImplemented
	}
	return m.listFunc(ctx, userID)
}

func (m *mockConnectionService) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error {
	if m.updateFunc == nil {
		return errNotImplemented
	}
	return m.updateFunc(ctx, id, config)
}

func (m *mockConnectionService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if m.renameFunc == nil {
		return errNotImplemented
	}
	return m.renameFunc(ctx, id, name)
}

func (m *mockConnectionService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc == nil {
		return errNotImplemented
	}
	return m.deleteFunc(ctx, id)
}

func (m *mockConnectionService) Test(ctx context.Context, id uuid.UUID) bool {
	if m.testFunc == nil {
		return false
	}
	return m.testFunc(ctx, id)
}

func (m *mockConnectionService) AcquireHandle(ctx context.Context, id uuid.UUID) (datasource.Handle, *models.Connection, error) {
	return nil, nil, errNotImplemented
}

// mockSchemaService implements services.SchemaService.
type mockSchemaService struct {
	createInitialFunc func(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error)
	refreshFunc       func(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error)
	getFunc           func(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error)
	saveFunc          func(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig) error
	setTableFunc      func(ctx context.Context, connectionID uuid.UUID, table, description string) error
	setFieldFunc      func(ctx context.Context, connectionID uuid.UUID, table, field, description string) error
	setContextFunc    func(ctx context.Context, connectionID uuid.UUID, bc models.BusinessContext) error
	setRulesFunc      func(ctx context.Context, connectionID uuid.UUID, rules []string) error
	importFunc        func(ctx context.Context, connectionID uuid.UUID, raw []byte) (*models.SchemaConfig, error)
}

func (m *mockSchemaService) CreateInitial(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error) {
	if m.createInitialFunc == nil {
		return nil, errNotImplemented
	}
	return m.createInitialFunc(ctx, connectionID)
}

func (m *mockSchemaService) SmartRefresh(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error) {
	if m.refreshFunc == nil {
		return nil, errNotImplemented
	}
	return m.refreshFunc(ctx, connectionID)
}

func (m *mockSchemaService) Get(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error) {
	if m.getFunc == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.getFunc(ctx, connectionID)
}

func (m *mockSchemaService) Save(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig) error {
	if m.saveFunc == nil {
		return errNotImplemented
	}
	return m.saveFunc(ctx, connectionID, document)
}

func (m *mockSchemaService) SetTableDescription(ctx context.Context, connectionID uuid.UUID, table, description string) error {
	if m.setTableFunc == nil {
		return errNotImplemented
	}
	return m.setTableFunc(ctx, connectionID, table, description)
}

func (m *mockSchemaService) SetFieldDescription(ctx context.Context, connectionID uuid.UUID, table, field, description string) error {
	if m.setFieldFunc == nil {
		return errNotImplemented
	}
	return m.setFieldFunc(ctx, connectionID, table, field, description)
}

func (m *mockSchemaService) SetBusinessContext(ctx context.Context, connectionID uuid.UUID, bc models.BusinessContext) error {
	if m.setContextFunc == nil {
		return errNotImplemented
	}
	return m.setContextFunc(ctx, connectionID, bc)
}

func (m *mockSchemaService) SetOptimizationRules(ctx context.Context, connectionID uuid.UUID, rules []string) error {
	if m.setRulesFunc == nil {
		return errNotImplemented
	}
	return m.setRulesFunc(ctx, connectionID, rules)
}

func (m *mockSchemaService) ImportDocument(ctx context.Context, connectionID uuid.UUID, raw []byte) (*models.SchemaConfig, error) {
	if m.importFunc == nil {
		return nil, errNotImplemented
	}
	return m.importFunc(ctx, connectionID, raw)
}

// mockQueryService implements services.QueryService.
type mockQueryService struct {
	askFunc      func(ctx context.Context, connectionID uuid.UUID, question string, limit int, analyze bool) (*services.QueryResult, error)
	generateFunc func(ctx context.Context, connectionID uuid.UUID, question string) (string, error)
}

func (m *mockQueryService) Ask(ctx context.Context, connectionID uuid.UUID, question string, limit int, analyze bool) (*services.QueryResult, error) {
	if m.askFunc == nil {
		return nil, errNotImplemented
	}
	return m.askFunc(ctx, connectionID, question, limit, analyze)
}

func (m *mockQueryService) GenerateSQL(ctx context.Context, connectionID uuid.UUID, question string) (string, error) {
	if m.generateFunc == nil {
		return "", errNotImplemented
	}
	return m.generateFunc(ctx, connectionID, question)
}

var (
	_ services.ConnectionService = (*mockConnectionService)(nil)
	_ services.SchemaService     = (*mockSchemaService)(nil)
	_ services.QueryService      = (*mockQueryService)(nil)
)
