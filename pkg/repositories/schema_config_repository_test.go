package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/models"
)

func sampleDocument() *models.SchemaConfig {
	doc := models.NewSchemaConfig([]string{"Use result caching"})
	doc.Tables["ORDERS"] = models.TableConfig{
		Description: "Customer orders",
		Fields: map[string]models.FieldConfig{
			"ID": {Type: "NUMBER", PrimaryKey: true},
		},
	}
	return doc
}

func TestSchemaConfigRepository_CreateAndGet(t *testing.T) {
	users, conns, schemas := testRepos(t)
	ctx := context.Background()

	user := createTestUser(t, users)
	conn := createTestConnection(t, conns, user.ID)

	stored := &models.StoredSchemaConfig{
		ConnectionID: conn.ID,
		UserID:       user.ID,
		Document:     sampleDocument(),
	}
	if err := schemas.Create(ctx, stored); err != nil {
		t.Fatalf("create: %v", err)
	}
	if stored.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}

	got, err := schemas.GetByConnectionID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Document.Tables["ORDERS"].Description != "Customer orders" {
		t.Error("document did not round-trip")
	}
	if !got.Document.Tables["ORDERS"].Fields["ID"].PrimaryKey {
		t.Error("primary key flag did not round-trip")
	}
	if got.LastModified.IsZero() {
		t.Error("last_modified not set")
	}
}

func TestSchemaConfigRepository_OnePerConnection(t *testing.T) {
	users, conns, schemas := testRepos(t)
	ctx := context.Background()

	user := createTestUser(t, users)
	conn := createTestConnection(t, conns, user.ID)

	first := &models.StoredSchemaConfig{ConnectionID: conn.ID, UserID: user.ID, Document: sampleDocument()}
	if err := schemas.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := &models.StoredSchemaConfig{ConnectionID: conn.ID, UserID: user.ID, Document: sampleDocument()}
	if err := schemas.Create(ctx, second); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict for second document, got %v", err)
	}
}

func TestSchemaConfigRepository_ReplaceCAS(t *testing.T) {
	users, conns, schemas := testRepos(t)
	ctx := context.Background()

	user := createTestUser(t, users)
	conn := createTestConnection(t, conns, user.ID)

	stored := &models.StoredSchemaConfig{ConnectionID: conn.ID, UserID: user.ID, Document: sampleDocument()}
	if err := schemas.Create(ctx, stored); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := sampleDocument()
	table := updated.Tables["ORDERS"]
	table.Description = "Orders placed by customers"
	updated.Tables["ORDERS"] = table

	newModified, err := schemas.Replace(ctx, conn.ID, updated, stored.LastModified)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !newModified.After(stored.LastModified) {
		t.Error("last_modified must advance on replace")
	}

	// Replaying the old token must fail, prior write stays intact.
	if _, err := schemas.Replace(ctx, conn.ID, sampleDocument(), stored.LastModified); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict for stale token, got %v", err)
	}
	got, err := schemas.GetByConnectionID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Document.Tables["ORDERS"].Description != "Orders placed by customers" {
		t.Error("stale replace must not overwrite newer document")
	}
}

func TestSchemaConfigRepository_ReplaceMissing(t *testing.T) {
	users, conns, schemas := testRepos(t)
	ctx := context.Background()

	user := createTestUser(t, users)
	conn := createTestConnection(t, conns, user.ID)

	stored := &models.StoredSchemaConfig{ConnectionID: conn.ID, UserID: user.ID, Document: sampleDocument()}
	if err := schemas.Create(ctx, stored); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := schemas.Replace(ctx, uuid.New(), sampleDocument(), stored.LastModified); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSchemaConfigRepository_LegacyUpgradeOnRead(t *testing.T) {
	users, conns, schemas := testRepos(t)
	db := testEngineDB(t)
	ctx := context.Background()

	user := createTestUser(t, users)
	conn := createTestConnection(t, conns, user.ID)

	legacy := map[string]any{
		"version": "1.0",
		"base_schema": map[string]any{
			"ORDERS": map[string]any{
				"fields": map[string]any{
					"ID": map[string]any{"type": "NUMBER", "nullable": false, "primary_key": true},
				},
			},
		},
		"business_context": map[string]any{
			"description": "Warehouse",
			"table_descriptions": map[string]any{
				"ORDERS": map[string]any{
					"description": "Customer orders",
					"fields":      map[string]any{"ID": "Order key"},
				},
			},
		},
		"query_guidelines": map[string]any{"optimization_rules": []any{"rule"}},
	}
	raw, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO engine_schema_configs (connection_id, user_id, document, created_at, last_modified)
		VALUES ($1, $2, $3, now(), now())`,
		conn.ID, user.ID, raw)
	if err != nil {
		t.Fatalf("insert legacy document: %v", err)
	}

	got, err := schemas.GetByConnectionID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Document.Version != models.DocumentVersion {
		t.Errorf("expected upgrade to %s, got %s", models.DocumentVersion, got.Document.Version)
	}
	if got.Document.Tables["ORDERS"].Description != "Customer orders" {
		t.Error("legacy table annotation lost in upgrade")
	}
	if got.Document.Tables["ORDERS"].Fields["ID"].Description != "Order key" {
		t.Error("legacy field annotation lost in upgrade")
	}
}
