package handlers

import (
	"encoding/json"
	"net/http"

	"propstage/internal/domain"
	"propstage/internal/jobs"
	"propstage/internal/middleware"
)

type descriptionCreateRequest struct {
	ProjectID    *string           `json:"project_id,omitempty"`
	PropertyData map[string]string `json:"property_data"`
	Tone         string            `json:"tone"`
	Language     string            `json:"language,omitempty"`
}

func (a *App) DescriptionsCreate(w http.ResponseWriter, r *http.Request) {
	var req descriptionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Language == "" {
		req.Language = middleware.LocaleFromContext(r.Context())
	}

	job, err := a.Service.SubmitDescription(r.Context(), jobs.SubmitDescriptionRequest{
		UserID:       a.currentUserID(r),
		ProjectID:    req.ProjectID,
		PropertyData: req.PropertyData,
		Tone:         req.Tone,
		Language:     req.Language,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.respondSubmitted(w, r, job)
}

func (a *App) DescriptionsList(w http.ResponseWriter, r *http.Request) {
	a.listJobs(w, r, domain.JobKindDescription)
}

func (a *App) DescriptionsGet(w http.ResponseWriter, r *http.Request) {
	a.getJob(w, r, domain.JobKindDescription)
}

func (a *App) DescriptionsDelete(w http.ResponseWriter, r *http.Request) {
	a.deleteJob(w, r, domain.JobKindDescription)
}

func (a *App) DescriptionsRegenerate(w http.ResponseWriter, r *http.Request) {
	a.regenerateJob(w, r, domain.JobKindDescription)
}
