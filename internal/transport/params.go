package transport

import (
	"net/http"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBytes caps multipart uploads (product images, verification documents)
const maxUploadBytes = 5 << 20

// currentUser returns the authenticated caller, writing a 401 when there is none
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Role, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, "", false
	}
	role, _ := middleware.GetUserRole(r.Context())
	return userID, role, true
}

// uuidParam parses the named route parameter, writing a 400 when it is not a uuid
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

type messageResponse struct {
	Message string `json:"message"`
}
