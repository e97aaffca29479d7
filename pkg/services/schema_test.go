package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/models"
)

// fakeSchemaRepo is an in-memory SchemaConfigRepository with the same
// compare-and-swap semantics as the real one.
type fakeSchemaRepo struct {
	mu    sync.Mutex
	docs  map[uuid.UUID]*models.StoredSchemaConfig
	clock time.Time
}

func newFakeSchemaRepo() *fakeSchemaRepo {
	return &fakeSchemaRepo{
		docs:  make(map[uuid.UUID]*models.StoredSchemaConfig),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeSchemaRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeSchemaRepo) Create(ctx context.Context, stored *models.StoredSchemaConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[stored.ConnectionID]; ok {
		return apperrors.ErrConflict
	}
	now := r.tick()
	stored.ID = uuid.New()
	stored.CreatedAt = now
	stored.LastModified = now
	r.docs[stored.ConnectionID] = &models.StoredSchemaConfig{
		ID:           stored.ID,
		ConnectionID: stored.ConnectionID,
		UserID:       stored.UserID,
		Document:     stored.Document.Clone(),
		CreatedAt:    now,
		LastModified: now,
	}
	return nil
}

func (r *fakeSchemaRepo) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.StoredSchemaConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[connectionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *stored
	copied.Document = stored.Document.Clone()
	return &copied, nil
}

func (r *fakeSchemaRepo) Replace(ctx context.Context, connectionID uuid.UUID, document *models.SchemaConfig, expectedLastModified time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[connectionID]
	if !ok {
		return time.Time{}, apperrors.ErrNotFound
	}
	if !stored.LastModified.Equal(expectedLastModified) {
		return time.Time{}, apperrors.ErrConflict
	}
	now := r.tick()
	stored.Document = document.Clone()
	stored.LastModified = now
	return now, nil
}

func (r *fakeSchemaRepo) Delete(ctx context.Context, connectionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, connectionID)
	return nil
}

// fakeInspectHandle serves canned introspection results.
type fakeInspectHandle struct {
	result     *datasource.InspectResult
	inspectErr error
	inspects   int
}

func (h *fakeInspectHandle) Probe(ctx context.Context) error { return nil }

func (h *fakeInspectHandle) Inspect(ctx context.Context) (*datasource.InspectResult, error) {
	h.inspects++
	if h.inspectErr != nil {
		return nil, h.inspectErr
	}
	return &datasource.InspectResult{
		Schema:     h.result.Schema.Clone(),
		PKDegraded: h.result.PKDegraded,
	}, nil
}

func (h *fakeInspectHandle) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	return &datasource.QueryResult{}, nil
}

func (h *fakeInspectHandle) Close() error { return nil }

// fakeConnectionService hands out a fixed connection and handle.
type fakeConnectionService struct {
	conn       *models.Connection
	handle     datasource.Handle
	acquireErr error
}

func (f *fakeConnectionService) Create(ctx context.Context, userID uuid.UUID, name, sourceType string, config map[string]any) (*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConnectionService) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	if f.conn == nil || f.conn.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return f.conn, nil
}

func (f *fakeConnectionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConnectionService) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error {
	return errors.New("not implemented")
}

func (f *fakeConnectionService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return errors.New("not implemented")
}

func (f *fakeConnectionService) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *fakeConnectionService) Test(ctx context.Context, id uuid.UUID) bool { return true }

func (f *fakeConnectionService) AcquireHandle(ctx context.Context, id uuid.UUID) (datasource.Handle, *models.Connection, error) {
	if f.acquireErr != nil {
		return nil, nil, f.acquireErr
	}
	return f.handle, f.conn, nil
}

func freshInventory() *models.SchemaConfig {
	doc := models.NewSchemaConfig([]string{"Prefer explicit column lists"})
	doc.Tables["items"] = models.TableConfig{
		Fields: map[string]models.FieldConfig{
			"id":   {Type: "integer", PrimaryKey: true},
			"name": {Type: "text", Nullable: true},
		},
	}
	doc.Tables["stock"] = models.TableConfig{
		Fields: map[string]models.FieldConfig{
			"item_id": {Type: "integer"},
			"qty":     {Type: "integer"},
		},
	}
	return doc
}

func newSchemaFixture(t *testing.T, fresh *models.SchemaConfig, pkDegraded bool) (*schemaService, *fakeSchemaRepo, *fakeInspectHandle, uuid.UUID) {
	t.Helper()
	connID := uuid.New()
	handle := &fakeInspectHandle{result: &datasource.InspectResult{Schema: fresh, PKDegraded: pkDegraded}}
	conns := &fakeConnectionService{
		conn:   &models.Connection{ID: connID, UserID: uuid.New(), Name: "warehouse", SourceType: "snowflake"},
		handle: handle,
	}
	repo := newFakeSchemaRepo()
	svc := NewSchemaService(repo, conns, time.Minute, zap.NewNop()).(*schemaService)
	return svc, repo, handle, connID
}

func TestCreateInitialStoresFreshDocument(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), true)

	result, err := svc.CreateInitial(context.Background(), connID)
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	if result.TableCount != 2 {
		t.Errorf("TableCount = %d, want 2", result.TableCount)
	}
	if !result.PKDegraded {
		t.Error("expected PKDegraded to carry through")
	}
	if result.MergeFellBack {
		t.Error("initial creation must not report a merge fallback")
	}

	stored, err := repo.GetByConnectionID(context.Background(), connID)
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if _, ok := stored.Document.Tables["items"]; !ok {
		t.Error("stored document missing introspected table")
	}
}

func TestSmartRefreshKeepsEmptiedOptimizationRules(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	if err := svc.SetOptimizationRules(context.Background(), connID, []string{}); err != nil {
		t.Fatalf("SetOptimizationRules: %v", err)
	}

	// The inspector still reports the source defaults on every refresh.
	if _, err := svc.SmartRefresh(context.Background(), connID); err != nil {
		t.Fatalf("SmartRefresh: %v", err)
	}

	stored, err := repo.GetByConnectionID(context.Background(), connID)
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if rules := stored.Document.QueryGuidelines.OptimizationRules; len(rules) != 0 {
		t.Errorf("refresh resurrected source defaults: %v", rules)
	}
}

func TestCreateInitialConflictsWhenDocumentExists(t *testing.T) {
	svc, _, _, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("first CreateInitial: %v", err)
	}
	_, err := svc.CreateInitial(context.Background(), connID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("second CreateInitial error = %v, want ErrConflict", err)
	}
}

func TestSmartRefreshPreservesAnnotations(t *testing.T) {
	svc, repo, handle, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	// Annotate, then change the source structure before refreshing.
	if err := svc.SetTableDescription(context.Background(), connID, "items", "Catalog items"); err != nil {
		t.Fatalf("SetTableDescription: %v", err)
	}
	if err := svc.SetFieldDescription(context.Background(), connID, "items", "name", "Display name"); err != nil {
		t.Fatalf("SetFieldDescription: %v", err)
	}

	next := freshInventory()
	delete(next.Tables, "stock")
	items := next.Tables["items"]
	items.Fields["sku"] = models.FieldConfig{Type: "text"}
	next.Tables["items"] = items
	handle.result.Schema = next

	result, err := svc.SmartRefresh(context.Background(), connID)
	if err != nil {
		t.Fatalf("SmartRefresh: %v", err)
	}
	if result.MergeFellBack {
		t.Error("merge fell back unexpectedly")
	}
	if result.TableCount != 1 {
		t.Errorf("TableCount = %d, want 1 after dropped table", result.TableCount)
	}

	stored, err := repo.GetByConnectionID(context.Background(), connID)
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	got := stored.Document
	if got.Tables["items"].Description != "Catalog items" {
		t.Errorf("table annotation lost: %q", got.Tables["items"].Description)
	}
	if got.Tables["items"].Fields["name"].Description != "Display name" {
		t.Errorf("field annotation lost: %q", got.Tables["items"].Fields["name"].Description)
	}
	if _, ok := got.Tables["items"].Fields["sku"]; !ok {
		t.Error("new field missing after refresh")
	}
	if _, ok := got.Tables["stock"]; ok {
		t.Error("dropped table survived refresh")
	}
}

func TestSmartRefreshWithoutPriorDocumentCreates(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), false)

	result, err := svc.SmartRefresh(context.Background(), connID)
	if err != nil {
		t.Fatalf("SmartRefresh: %v", err)
	}
	if result.TableCount != 2 {
		t.Errorf("TableCount = %d, want 2", result.TableCount)
	}
	if _, err := repo.GetByConnectionID(context.Background(), connID); err != nil {
		t.Fatalf("document not created: %v", err)
	}
}

func TestSmartRefreshFailedInspectLeavesDocumentUntouched(t *testing.T) {
	svc, repo, handle, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	before, _ := repo.GetByConnectionID(context.Background(), connID)

	handle.inspectErr = errors.New("warehouse unreachable")
	if _, err := svc.SmartRefresh(context.Background(), connID); err == nil {
		t.Fatal("expected SmartRefresh to fail")
	}

	after, err := repo.GetByConnectionID(context.Background(), connID)
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if !after.LastModified.Equal(before.LastModified) {
		t.Error("failed refresh modified the stored document")
	}
}

func TestMergeFallbackReportsAndKeepsFresh(t *testing.T) {
	svc, _, _, _ := newSchemaFixture(t, freshInventory(), false)

	current := freshInventory()
	fresh := freshInventory()
	boom := func(string) string { panic("fold exploded") }

	doc, fellBack := svc.mergeWithFallback(current, fresh, boom)
	if !fellBack {
		t.Fatal("expected fallback to be reported")
	}
	if doc != fresh {
		t.Error("fallback must return the fresh structure")
	}
}

func TestSetTableDescriptionUnknownTable(t *testing.T) {
	svc, _, _, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	err := svc.SetTableDescription(context.Background(), connID, "ghosts", "nope")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSetBusinessContextAndRules(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	bc := models.BusinessContext{Description: "Retail inventory", KeyConcepts: []string{"SKU"}}
	if err := svc.SetBusinessContext(context.Background(), connID, bc); err != nil {
		t.Fatalf("SetBusinessContext: %v", err)
	}
	if err := svc.SetOptimizationRules(context.Background(), connID, []string{"Use LIMIT"}); err != nil {
		t.Fatalf("SetOptimizationRules: %v", err)
	}

	stored, _ := repo.GetByConnectionID(context.Background(), connID)
	if stored.Document.BusinessContext.Description != "Retail inventory" {
		t.Errorf("business context = %q", stored.Document.BusinessContext.Description)
	}
	if len(stored.Document.QueryGuidelines.OptimizationRules) != 1 {
		t.Errorf("rules = %v", stored.Document.QueryGuidelines.OptimizationRules)
	}
}

func TestImportDocumentYAMLLegacy(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), false)

	raw := strings.TrimSpace(`
version: "1.0"
base_schema:
  orders:
    fields:
      id:
        type: integer
        primary_key: true
business_context:
  description: Order history
  table_descriptions:
    orders:
      description: Customer orders
      fields:
        id: Order identifier
query_guidelines:
  optimization_rules:
    - Filter on order date
`)

	doc, err := svc.ImportDocument(context.Background(), connID, []byte(raw))
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	if doc.Version != models.DocumentVersion {
		t.Errorf("version = %q, want %q", doc.Version, models.DocumentVersion)
	}
	if doc.Tables["orders"].Description != "Customer orders" {
		t.Errorf("table description = %q", doc.Tables["orders"].Description)
	}
	if doc.Tables["orders"].Fields["id"].Description != "Order identifier" {
		t.Errorf("field description = %q", doc.Tables["orders"].Fields["id"].Description)
	}

	stored, err := repo.GetByConnectionID(context.Background(), connID)
	if err != nil {
		t.Fatalf("imported document not stored: %v", err)
	}
	if stored.Document.Tables["orders"].Fields["id"].Type != "integer" {
		t.Error("imported structure not stored")
	}
}

func TestImportDocumentReplacesExisting(t *testing.T) {
	svc, repo, _, connID := newSchemaFixture(t, freshInventory(), false)

	if _, err := svc.CreateInitial(context.Background(), connID); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	raw := []byte(`{"version":"2.0","tables":{"only":{"description":"","fields":{}}}}`)
	if _, err := svc.ImportDocument(context.Background(), connID, raw); err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}

	stored, _ := repo.GetByConnectionID(context.Background(), connID)
	if len(stored.Document.Tables) != 1 {
		t.Errorf("tables = %d, want 1", len(stored.Document.Tables))
	}
}
