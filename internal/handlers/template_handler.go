package handlers

import (
	"net/http"

	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
)

// TemplateHandler serves the emotion template catalogue.
type TemplateHandler struct {
	TemplateService *services.TemplateService
}

// NewTemplateHandler creates a new instance of TemplateHandler.
func NewTemplateHandler(templateService *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{TemplateService: templateService}
}

// GetTemplatesHandler returns every emotion template.
func (h *TemplateHandler) GetTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	templates, err := h.TemplateService.GetAllTemplates(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch templates", http.StatusInternalServerError)
		logger.Log.Errorf("Error fetching templates: %v", err)
		return
	}

	logger.Log.Debugf("Fetched %d emotion templates", len(templates))
	writeJSON(w, http.StatusOK, templates)
}
