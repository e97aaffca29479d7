package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/audit"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
	"github.com/asklantern/lantern-engine/pkg/sqlguard"
)

// AskRequest for POST body. Params are optional literal values the caller
// wants echoed into follow-up tooling; they are scanned for injection
// patterns before the request is accepted.
type AskRequest struct {
	Question string         `json:"question"`
	Limit    int            `json:"limit"`
	Analyze  bool           `json:"analyze"`
	Params   map[string]any `json:"params,omitempty"`
}

// GenerateSQLResponse for preview results.
type GenerateSQLResponse struct {
	SQL string `json:"sql"`
}

// QueryHandler handles natural language query HTTP requests.
type QueryHandler struct {
	queries     services.QueryService
	connections services.ConnectionService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queries services.QueryService, connections services.ConnectionService, auditor *audit.SecurityAuditor, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, connections: connections, auditor: auditor, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/connections/{id}/query", h.Ask)
	mux.HandleFunc("POST /api/connections/{id}/query/preview", h.Preview)
}

// Ask handles POST /api/connections/{id}/query.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	conn, req, ok := h.parse(w, r)
	if !ok {
		return
	}

	result, err := h.queries.Ask(r.Context(), conn.ID, req.Question, req.Limit, req.Analyze)
	if err != nil {
		h.logger.Error("query failed",
			zap.String("connectionID", conn.ID.String()),
			zap.Error(err))
		h.auditRejection(r, conn, err)
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// Preview handles POST /api/connections/{id}/query/preview.
// Generates and validates SQL without executing it.
func (h *QueryHandler) Preview(w http.ResponseWriter, r *http.Request) {
	conn, req, ok := h.parse(w, r)
	if !ok {
		return
	}

	sqlQuery, err := h.queries.GenerateSQL(r.Context(), conn.ID, req.Question)
	if err != nil {
		h.auditRejection(r, conn, err)
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, GenerateSQLResponse{SQL: sqlQuery}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// parse authorizes the connection, decodes the request and scans the
// caller's literal params for injection patterns.
func (h *QueryHandler) parse(w http.ResponseWriter, r *http.Request) (*models.Connection, AskRequest, bool) {
	var req AskRequest

	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return nil, req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return nil, req, false
	}

	if dirty := sqlguard.CheckAllValues(req.Params); len(dirty) > 0 {
		h.auditor.LogInjectionAttempt(conn.ID, r.Header.Get(UserIDHeader), r.RemoteAddr, audit.SQLInjectionDetails{
			ParamName:   dirty[0].ParamName,
			ParamValue:  dirty[0].ParamValue.(string),
			Fingerprint: dirty[0].Fingerprint,
		})
		h.writeError(w, http.StatusBadRequest, "injection_detected",
			"Parameter "+dirty[0].ParamName+" contains a SQL injection pattern")
		return nil, req, false
	}
	return conn, req, true
}

// auditRejection records a guard refusal of model output; other failures
// are ordinary errors and stay out of the security log.
func (h *QueryHandler) auditRejection(r *http.Request, conn *models.Connection, err error) {
	var rejected *services.RejectedSQLError
	if !errors.As(err, &rejected) {
		return
	}
	h.auditor.LogRejectedSQL(conn.ID, r.Header.Get(UserIDHeader), r.RemoteAddr, audit.RejectedSQLDetails{
		Statement: rejected.Statement,
		Reason:    rejected.Err.Error(),
	})
}

func (h *QueryHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (h *QueryHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := serviceError(w, err); werr != nil {
		h.logger.Error("failed to write error response", zap.Error(werr))
	}
}
