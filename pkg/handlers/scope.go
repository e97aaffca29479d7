package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/services"
)

// requestUserID parses the caller's user id header. On failure it writes a
// 400 and returns false.
func requestUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "missing_user", "A valid "+UserIDHeader+" header is required"); werr != nil {
			logger.Error("failed to write error response", zap.Error(werr))
		}
		return uuid.Nil, false
	}
	return userID, true
}

// ownedConnection loads the {id} path connection and verifies the caller
// owns it. A foreign connection reads as not found so ids cannot be probed.
func ownedConnection(w http.ResponseWriter, r *http.Request, connections services.ConnectionService, logger *zap.Logger) (*models.Connection, bool) {
	userID, ok := requestUserID(w, r, logger)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid connection ID format"); werr != nil {
			logger.Error("failed to write error response", zap.Error(werr))
		}
		return nil, false
	}

	conn, err := connections.Get(r.Context(), id)
	if err != nil {
		if werr := serviceError(w, err); werr != nil {
			logger.Error("failed to write error response", zap.Error(werr))
		}
		return nil, false
	}
	if conn.UserID != userID {
		if werr := ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found"); werr != nil {
			logger.Error("failed to write error response", zap.Error(werr))
		}
		return nil, false
	}
	return conn, true
}
