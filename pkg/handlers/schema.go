package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
)

// maxImportBytes caps schema document uploads.
const maxImportBytes = 4 << 20

// SchemaConfigResponse is the wire shape of a stored schema configuration.
type SchemaConfigResponse struct {
	ConnectionID string               `json:"connection_id"`
	Document     *models.SchemaConfig `json:"document"`
	CreatedAt    string               `json:"created_at"`
	LastModified string               `json:"last_modified"`
}

// RefreshResponse reports an introspection outcome including the soft
// degradation flags.
type RefreshResponse struct {
	TableCount    int  `json:"table_count"`
	PKDegraded    bool `json:"pk_degraded"`
	MergeFellBack bool `json:"merge_fell_back"`
}

// SetDescriptionRequest for table and field annotation PATCH bodies.
type SetDescriptionRequest struct {
	Description string `json:"description"`
}

// SetBusinessContextRequest for PUT body.
type SetBusinessContextRequest struct {
	Description string   `json:"description"`
	KeyConcepts []string `json:"key_concepts"`
}

// SetGuidelinesRequest for PUT body.
type SetGuidelinesRequest struct {
	OptimizationRules []string `json:"optimization_rules"`
}

// SchemaHandler handles schema configuration HTTP requests.
type SchemaHandler struct {
	schemas     services.SchemaService
	connections services.ConnectionService

	// legacyDir holds pre-database YAML exports importable by file name.
	// Empty disables that path; imports then require a request body.
	legacyDir string
	logger    *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(schemas services.SchemaService, connections services.ConnectionService, legacyDir string, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		schemas:     schemas,
		connections: connections,
		legacyDir:   legacyDir,
		logger:      logger,
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections/{id}/schema", h.Get)
	mux.HandleFunc("POST /api/connections/{id}/schema", h.CreateInitial)
	mux.HandleFunc("POST /api/connections/{id}/schema/refresh", h.Refresh)
	mux.HandleFunc("PUT /api/connections/{id}/schema", h.Save)
	mux.HandleFunc("POST /api/connections/{id}/schema/import", h.Import)
	mux.HandleFunc("PATCH /api/connections/{id}/schema/tables/{table}", h.SetTableDescription)
	mux.HandleFunc("PATCH /api/connections/{id}/schema/tables/{table}/fields/{field}", h.SetFieldDescription)
	mux.HandleFunc("PUT /api/connections/{id}/schema/business-context", h.SetBusinessContext)
	mux.HandleFunc("PUT /api/connections/{id}/schema/guidelines", h.SetGuidelines)
}

// Get handles GET /api/connections/{id}/schema.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	stored, err := h.schemas.Get(r.Context(), conn.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := SchemaConfigResponse{
		ConnectionID: stored.ConnectionID.String(),
		Document:     stored.Document,
		CreatedAt:    stored.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastModified: stored.LastModified.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// CreateInitial handles POST /api/connections/{id}/schema.
// Introspects the source for the first time.
func (h *SchemaHandler) CreateInitial(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	result, err := h.schemas.CreateInitial(r.Context(), conn.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeRefresh(w, http.StatusCreated, result)
}

// Refresh handles POST /api/connections/{id}/schema/refresh.
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	result, err := h.schemas.SmartRefresh(r.Context(), conn.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeRefresh(w, http.StatusOK, result)
}

// Save handles PUT /api/connections/{id}/schema.
// Replaces the whole document from the annotation editor.
func (h *SchemaHandler) Save(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	var document models.SchemaConfig
	if err := json.NewDecoder(r.Body).Decode(&document); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if err := h.schemas.Save(r.Context(), conn.ID, &document); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/connections/{id}/schema/import.
// Accepts a YAML or JSON document in the body, or ?file= naming an export
// in the configured legacy directory.
func (h *SchemaHandler) Import(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	if len(raw) == 0 {
		fileName := r.URL.Query().Get("file")
		if h.legacyDir == "" || fileName == "" {
			h.writeError(w, http.StatusBadRequest, "invalid_body", "Provide a document body or a ?file= name")
			return
		}
		if filepath.Base(fileName) != fileName {
			h.writeError(w, http.StatusBadRequest, "invalid_file", "File name must not contain a path")
			return
		}
		raw, err = os.ReadFile(filepath.Join(h.legacyDir, fileName))
		if err != nil {
			h.writeError(w, http.StatusNotFound, "file_not_found", "Legacy config file not found")
			return
		}
	}

	doc, err := h.schemas.ImportDocument(r.Context(), conn.ID, raw)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, doc); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// SetTableDescription handles PATCH /api/connections/{id}/schema/tables/{table}.
func (h *SchemaHandler) SetTableDescription(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	var req SetDescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if err := h.schemas.SetTableDescription(r.Context(), conn.ID, r.PathValue("table"), req.Description); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFieldDescription handles PATCH /api/connections/{id}/schema/tables/{table}/fields/{field}.
func (h *SchemaHandler) SetFieldDescription(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	var req SetDescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	err := h.schemas.SetFieldDescription(r.Context(), conn.ID, r.PathValue("table"), r.PathValue("field"), req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBusinessContext handles PUT /api/connections/{id}/schema/business-context.
func (h *SchemaHandler) SetBusinessContext(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	var req SetBusinessContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	bc := models.BusinessContext{Description: req.Description, KeyConcepts: req.KeyConcepts}
	if err := h.schemas.SetBusinessContext(r.Context(), conn.ID, bc); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetGuidelines handles PUT /api/connections/{id}/schema/guidelines.
func (h *SchemaHandler) SetGuidelines(w http.ResponseWriter, r *http.Request) {
	conn, ok := ownedConnection(w, r, h.connections, h.logger)
	if !ok {
		return
	}

	var req SetGuidelinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if err := h.schemas.SetOptimizationRules(r.Context(), conn.ID, req.OptimizationRules); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchemaHandler) writeRefresh(w http.ResponseWriter, status int, result *services.RefreshResult) {
	resp := RefreshResponse{
		TableCount:    result.TableCount,
		PKDegraded:    result.PKDegraded,
		MergeFellBack: result.MergeFellBack,
	}
	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *SchemaHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (h *SchemaHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := serviceError(w, err); werr != nil {
		h.logger.Error("failed to write error response", zap.Error(werr))
	}
}
