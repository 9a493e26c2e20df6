package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/gorilla/mux"
)

const multipartMemory = 32 << 20

var unlockDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// CapsuleHandler handles HTTP requests related to time capsules.
type CapsuleHandler struct {
	Service       *services.CapsuleService
	MaxUploadSize int64
	Location      *time.Location
}

// NewCapsuleHandler creates a new instance of CapsuleHandler.
func NewCapsuleHandler(service *services.CapsuleService, maxUploadSize int64, loc *time.Location) *CapsuleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CapsuleHandler{
		Service:       service,
		MaxUploadSize: maxUploadSize,
		Location:      loc,
	}
}

// CreateCapsuleHandler handles POST /capsules (multipart form).
func (h *CapsuleHandler) CreateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if h.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logger.Log.WithError(err).Warn("Failed to parse capsule form")
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	unlockAt, err := parseUnlockDate(r.FormValue("unlock_date"), h.Location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input := services.CreateCapsuleInput{
		Title:     r.FormValue("title"),
		Message:   r.FormValue("message"),
		PersonTag: r.FormValue("person_tag"),
		UnlockAt:  unlockAt,
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["media"]
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			logger.Log.WithError(err).WithField("file", fh.Filename).Warn("Failed to open upload")
			http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
			return
		}
		defer f.Close()

		input.Media = append(input.Media, services.MediaUpload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	result, err := h.Service.CreateCapsule(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Log.Infof("User %s created capsule %s", userID.Hex(), result.CapsuleID.Hex())
	writeJSON(w, http.StatusCreated, result)
}

// GetCapsulesHandler handles GET /capsules?status=all|locked|unlocked.
func (h *CapsuleHandler) GetCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	capsules, err := h.Service.ListCapsules(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capsules)
}

// GetCapsuleHandler handles GET /capsules/{id}.
func (h *CapsuleHandler) GetCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	capsule, err := h.Service.GetCapsule(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capsule)
}

// UpdateCapsuleHandler handles PUT /capsules/{id} with a partial JSON body.
func (h *CapsuleHandler) UpdateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd models.CapsuleUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		logger.Log.Warnf("Failed to decode capsule update: %v", err)
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	id := mux.Vars(r)["id"]
	updated, err := h.Service.UpdateCapsule(r.Context(), userID, id, upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Log.Infof("User %s updated capsule %s", userID.Hex(), id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCapsuleHandler handles DELETE /capsules/{id}.
func (h *CapsuleHandler) DeleteCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.Service.DeleteCapsule(r.Context(), userID, id); err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Log.Infof("User %s deleted capsule %s", userID.Hex(), id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Time capsule deleted successfully"})
}

// parseUnlockDate accepts RFC 3339, a local date-time or a bare date in loc.
func parseUnlockDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range unlockDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid unlock_date %q", raw)
}
