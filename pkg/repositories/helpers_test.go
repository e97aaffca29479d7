package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/asklantern/lantern-engine/pkg/database"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/testhelpers"
)

func createTestUser(t *testing.T, repo UserRepository) *models.User {
	t.Helper()
	user := &models.User{
		Email: fmt.Sprintf("user-%s@example.com", uuid.NewString()),
		Name:  "Test User",
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestConnection(t *testing.T, repo ConnectionRepository, userID uuid.UUID) *models.Connection {
	t.Helper()
	conn := &models.Connection{
		UserID:     userID,
		Name:       fmt.Sprintf("warehouse-%s", uuid.NewString()[:8]),
		SourceType: "snowflake",
	}
	if err := repo.Create(context.Background(), conn, "encrypted-blob"); err != nil {
		t.Fatalf("create connection: %v", err)
	}
	return conn
}

func testRepos(t *testing.T) (UserRepository, ConnectionRepository, SchemaConfigRepository) {
	t.Helper()
	db := testEngineDB(t)
	return NewUserRepository(db), NewConnectionRepository(db), NewSchemaConfigRepository(db)
}

func testEngineDB(t *testing.T) *database.DB {
	t.Helper()
	return testhelpers.GetEngineDB(t).DB
}
