package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

// writeServiceError maps service sentinel errors onto HTTP status codes.
// Internal failures are logged and reported without details.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrExternalService):
		logger.Log.WithError(err).Error("Upstream failure")
		http.Error(w, "Upstream service unavailable", http.StatusBadGateway)
	default:
		logger.Log.WithError(err).Error("Request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// currentUser returns the authenticated user's ID or writes 401.
func currentUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		logger.Log.Warnf("Token carries invalid user ID %q", claims.UserID)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	return userID, true
}
