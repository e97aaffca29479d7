package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
)

// UserIDHeader names the request header carrying the caller's user id.
// Verifying it is the host's job; the engine only scopes data by it.
const UserIDHeader = "X-User-ID"

// ConnectionResponse is the wire shape of a connection. The credential
// bundle never leaves the server.
type ConnectionResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	CreatedAt  string `json:"created_at"`
	LastUsed   string `json:"last_used,omitempty"`
}

// CreateConnectionRequest for POST body.
type CreateConnectionRequest struct {
	Name       string         `json:"name"`
	SourceType string         `json:"source_type"`
	Config     map[string]any `json:"config"`
}

// UpdateConnectionConfigRequest for PUT body.
type UpdateConnectionConfigRequest struct {
	Config map[string]any `json:"config"`
}

// RenameConnectionRequest for PATCH body.
type RenameConnectionRequest struct {
	Name string `json:"name"`
}

// TestConnectionResponse for connection test result.
type TestConnectionResponse struct {
	Success bool `json:"success"`
}

// ConnectionsHandler handles connection registry HTTP requests.
type ConnectionsHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(connections services.ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{connections: connections, logger: logger}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/source-types", h.SourceTypes)
	mux.HandleFunc("GET /api/connections", h.List)
	mux.HandleFunc("POST /api/connections", h.Create)
	mux.HandleFunc("GET /api/connections/{id}", h.Get)
	mux.HandleFunc("PUT /api/connections/{id}/config", h.UpdateConfig)
	mux.HandleFunc("PATCH /api/connections/{id}/name", h.Rename)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Delete)
	mux.HandleFunc("POST /api/connections/{id}/test", h.Test)
}

// SourceTypes handles GET /api/source-types.
// Returns the registered adapter catalog.
func (h *ConnectionsHandler) SourceTypes(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, datasource.RegisteredAdapters()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// List handles GET /api/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	conns, err := h.connections.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list connections", zap.Error(err))
		h.writeServiceError(w, err)
		return
	}

	responses := make([]ConnectionResponse, len(conns))
	for i, conn := range conns {
		responses[i] = toConnectionResponse(conn)
	}
	if err := WriteJSON(w, http.StatusOK, responses); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/connections.
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	conn, err := h.connections.Create(r.Context(), userID, req.Name, req.SourceType, req.Config)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, toConnectionResponse(conn)); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/connections/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}
	if err := WriteJSON(w, http.StatusOK, toConnectionResponse(conn)); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// UpdateConfig handles PUT /api/connections/{id}/config.
func (h *ConnectionsHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	var req UpdateConnectionConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if err := h.connections.UpdateConfig(r.Context(), conn.ID, req.Config); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles PATCH /api/connections/{id}/name.
func (h *ConnectionsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	var req RenameConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "A non-empty name is required")
		return
	}

	if err := h.connections.Rename(r.Context(), conn.ID, req.Name); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/connections/{id}.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	if err := h.connections.Delete(r.Context(), conn.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/connections/{id}/test.
// Always returns 200; the outcome rides in the body.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.ownedConnection(w, r)
	if !ok {
		return
	}

	success := h.connections.Test(r.Context(), conn.ID)
	if err := WriteJSON(w, http.StatusOK, TestConnectionResponse{Success: success}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *ConnectionsHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return requestUserID(w, r, h.logger)
}

func (h *ConnectionsHandler) ownedConnection(w http.ResponseWriter, r *http.Request) (*models.Connection, bool) {
	return ownedConnection(w, r, h.connections, h.logger)
}

func (h *ConnectionsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (h *ConnectionsHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := serviceError(w, err); werr != nil {
		h.logger.Error("failed to write error response", zap.Error(werr))
	}
}

func toConnectionResponse(conn *models.Connection) ConnectionResponse {
	resp := ConnectionResponse{
		ID:         conn.ID.String(),
		Name:       conn.Name,
		SourceType: conn.SourceType,
		CreatedAt:  conn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if conn.LastUsed != nil {
		resp.LastUsed = conn.LastUsed.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
