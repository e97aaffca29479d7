package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/repositories"
)

// UserResponse is the wire shape of a user record.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RegisterUserRequest for POST body.
type RegisterUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UsersHandler handles user registration and lookup.
type UsersHandler struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(users repositories.UserRepository, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.Register)
	mux.HandleFunc("GET /api/users/{id}", h.Get)
}

// Register handles POST /api/users.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		h.writeError(w, http.StatusBadRequest, "invalid_email", "A valid email is required")
		return
	}

	user := &models.User{Email: email, Name: strings.TrimSpace(req.Name)}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, toUserResponse(user)); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid user ID format")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, toUserResponse(user)); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *UsersHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (h *UsersHandler) writeServiceError(w http.ResponseWriter, err error) {
	if werr := serviceError(w, err); werr != nil {
		h.logger.Error("failed to write error response", zap.Error(werr))
	}
}
