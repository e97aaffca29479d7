package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
)

func newSchemaMux(schemas *mockSchemaService, conn *models.Connection) *http.ServeMux {
	connections := &mockConnectionService{
		getFunc: func(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
			if conn != nil && id == conn.ID {
				return conn, nil
			}
			return nil, apperrors.ErrNotFound
		},
	}
	mux := http.NewServeMux()
	NewSchemaHandler(schemas, connections, "", zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestGetSchemaConfig(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	doc := models.NewSchemaConfig([]string{"rule"})
	doc.Tables["items"] = models.TableConfig{Fields: map[string]models.FieldConfig{}}

	schemas := &mockSchemaService{
		getFunc: func(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error) {
			return &models.StoredSchemaConfig{
				ConnectionID: connectionID,
				Document:     doc,
				CreatedAt:    time.Now(),
				LastModified: time.Now(),
			}, nil
		},
	}
	mux := newSchemaMux(schemas, conn)

	req := httptest.NewRequest(http.MethodGet, "/api/connections/"+conn.ID.String()+"/schema", nil)
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp SchemaConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := resp.Document.Tables["items"]; !ok {
		t.Error("document missing table")
	}
}

func TestGetSchemaConfigMissing(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	mux := newSchemaMux(&mockSchemaService{}, conn)

	req := httptest.NewRequest(http.MethodGet, "/api/connections/"+conn.ID.String()+"/schema", nil)
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRefreshReportsDegradationFlags(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	schemas := &mockSchemaService{
		refreshFunc: func(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error) {
			return &services.RefreshResult{TableCount: 7, PKDegraded: true, MergeFellBack: true}, nil
		},
	}
	mux := newSchemaMux(schemas, conn)

	req := httptest.NewRequest(http.MethodPost, "/api/connections/"+conn.ID.String()+"/schema/refresh", nil)
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp RefreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.PKDegraded || !resp.MergeFellBack || resp.TableCount != 7 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateInitialConflict(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	schemas := &mockSchemaService{
		createInitialFunc: func(ctx context.Context, connectionID uuid.UUID) (*services.RefreshResult, error) {
			return nil, apperrors.ErrConflict
		},
	}
	mux := newSchemaMux(schemas, conn)

	req := httptest.NewRequest(http.MethodPost, "/api/connections/"+conn.ID.String()+"/schema", nil)
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestSetTableDescription(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	var gotTable, gotDesc string
	schemas := &mockSchemaService{
		setTableFunc: func(ctx context.Context, connectionID uuid.UUID, table, description string) error {
			gotTable, gotDesc = table, description
			return nil
		},
	}
	mux := newSchemaMux(schemas, conn)

	req := httptest.NewRequest(http.MethodPatch,
		"/api/connections/"+conn.ID.String()+"/schema/tables/ORDERS",
		strings.NewReader(`{"description":"Customer orders"}`))
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotTable != "ORDERS" || gotDesc != "Customer orders" {
		t.Errorf("table = %q desc = %q", gotTable, gotDesc)
	}
}

func TestSetFieldDescriptionUnknownField(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	schemas := &mockSchemaService{
		setFieldFunc: func(ctx context.Context, connectionID uuid.UUID, table, field, description string) error {
			return apperrors.ErrNotFound
		},
	}
	mux := newSchemaMux(schemas, conn)

	req := httptest.NewRequest(http.MethodPatch,
		"/api/connections/"+conn.ID.String()+"/schema/tables/ORDERS/fields/GHOST",
		strings.NewReader(`{"description":"x"}`))
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestImportSchemaDocument(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	schemas := &mockSchemaService{
		importFunc: func(ctx context.Context, connectionID uuid.UUID, raw []byte) (*models.SchemaConfig, error) {
			return models.ParseDocument(raw)
		},
	}
	mux := newSchemaMux(schemas, conn)

	body := "version: \"2.0\"\ntables:\n  items:\n    description: Catalog\n    fields: {}\n"
	req := httptest.NewRequest(http.MethodPost,
		"/api/connections/"+conn.ID.String()+"/schema/import", strings.NewReader(body))
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc models.SchemaConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Tables["items"].Description != "Catalog" {
		t.Errorf("document = %+v", doc)
	}
}

func TestImportRejectsEmptyRequest(t *testing.T) {
	owner := uuid.New()
	conn := sampleConnection(owner)
	mux := newSchemaMux(&mockSchemaService{}, conn)

	req := httptest.NewRequest(http.MethodPost,
		"/api/connections/"+conn.ID.String()+"/schema/import", nil)
	req.Header.Set(UserIDHeader, owner.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
