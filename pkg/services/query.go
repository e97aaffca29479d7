package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/llm"
	"github.com/asklantern/lantern-engine/pkg/prompts"
	"github.com/asklantern/lantern-engine/pkg/sqlguard"
)

// QueryResult is the answer to a natural language question: the SQL that was
// generated and the rows it returned.
type QueryResult struct {
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Analysis string           `json:"analysis,omitempty"`
}

// RejectedSQLError reports a generated statement that failed the read-only
// guard, carrying the statement for audit logging.
type RejectedSQLError struct {
	Statement string
	Err       error
}

func (e *RejectedSQLError) Error() string {
	return fmt.Sprintf("generated SQL rejected: %v", e.Err)
}

func (e *RejectedSQLError) Unwrap() error {
	return e.Err
}

// QueryService turns natural language questions into guarded SQL and runs it
// against the user's source.
type QueryService interface {
	// Ask generates SQL for the question from the connection's schema
	// configuration, validates it and executes it with a bounded row limit.
	// With analyze set, a second completion narrates the result rows; an
	// analysis failure never fails the query.
	Ask(ctx context.Context, connectionID uuid.UUID, question string, limit int, analyze bool) (*QueryResult, error)

	// GenerateSQL runs the generation and validation steps without
	// executing, for preview.
	GenerateSQL(ctx context.Context, connectionID uuid.UUID, question string) (string, error)
}

type queryService struct {
	connections ConnectionService
	schemas     SchemaService
	client      llm.Client
	logger      *zap.Logger
}

// NewQueryService creates a new query service with dependencies.
func NewQueryService(
	connections ConnectionService,
	schemas SchemaService,
	client llm.Client,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		connections: connections,
		schemas:     schemas,
		client:      client,
		logger:      logger,
	}
}

func (s *queryService) Ask(ctx context.Context, connectionID uuid.UUID, question string, limit int, analyze bool) (*QueryResult, error) {
	sqlQuery, sourceType, err := s.generate(ctx, connectionID, question)
	if err != nil {
		return nil, err
	}

	handle, _, err := s.connections.AcquireHandle(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	result, err := handle.Query(ctx, sqlQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("executing generated query: %w", err)
	}

	s.logger.Info("question answered",
		zap.String("connectionID", connectionID.String()),
		zap.String("sourceType", sourceType),
		zap.Int("rows", result.RowCount),
	)
	answer := &QueryResult{
		SQL:      sqlQuery,
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
	}
	if analyze {
		answer.Analysis = s.analyze(ctx, connectionID, question, answer)
	}
	return answer, nil
}

// analyze narrates the result rows. Failures are logged and swallowed: the
// caller already has the rows.
func (s *queryService) analyze(ctx context.Context, connectionID uuid.UUID, question string, result *QueryResult) string {
	prompt := prompts.BuildAnalysisPrompt(question, result.SQL, result.Columns, result.Rows)
	completion, err := s.client.Complete(ctx, prompts.AnalysisSystemMessage, prompt)
	if err != nil {
		s.logger.Warn("result analysis failed",
			zap.String("connectionID", connectionID.String()),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(completion.Content)
}

func (s *queryService) GenerateSQL(ctx context.Context, connectionID uuid.UUID, question string) (string, error) {
	sqlQuery, _, err := s.generate(ctx, connectionID, question)
	return sqlQuery, err
}

func (s *queryService) generate(ctx context.Context, connectionID uuid.UUID, question string) (string, string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", fmt.Errorf("question is required")
	}

	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return "", "", err
	}

	stored, err := s.schemas.Get(ctx, connectionID)
	if err != nil {
		return "", "", fmt.Errorf("loading schema configuration: %w", err)
	}

	system := prompts.BuildSQLGenerationSystemMessage(conn.SourceType)
	prompt := prompts.BuildSQLGenerationPrompt(stored.Document, question)

	completion, err := s.client.Complete(ctx, system, prompt)
	if err != nil {
		return "", "", err
	}

	candidate := stripFences(completion.Content)
	sqlQuery, err := sqlguard.CheckStatement(candidate)
	if err != nil {
		s.logger.Warn("generated SQL rejected",
			zap.String("connectionID", connectionID.String()),
			zap.Error(err),
		)
		return "", "", &RejectedSQLError{Statement: candidate, Err: err}
	}
	return sqlQuery, conn.SourceType, nil
}

// stripFences removes a markdown code fence when the model ignores the
// no-fences instruction.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```sql")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

var _ QueryService = (*queryService)(nil)
