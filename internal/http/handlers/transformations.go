package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propstage/internal/domain"
	"propstage/internal/jobs"
)

// maxImageUpload bounds the multipart form; staging rejects nothing below it.
const maxImageUpload = 20 << 20

type submitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Credits int    `json:"credits"`
}

func (a *App) TransformationsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable image upload")
		return
	}

	req := jobs.SubmitTransformationRequest{
		UserID:    userID,
		ProjectID: optionalField(r.FormValue("project_id")),
		Image:     image,
		Style:     r.FormValue("style"),
		Prompt:    r.FormValue("prompt"),
	}
	if raw := r.FormValue("annotations"); raw != "" {
		if !json.Valid([]byte(raw)) {
			a.error(w, http.StatusBadRequest, "bad_request", "annotations must be valid JSON")
			return
		}
		req.Annotations = json.RawMessage(raw)
	}

	job, err := a.Service.SubmitTransformation(r.Context(), req)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.respondSubmitted(w, r, job)
}

func (a *App) TransformationsList(w http.ResponseWriter, r *http.Request) {
	a.listJobs(w, r, domain.JobKindTransformation)
}

func (a *App) TransformationsGet(w http.ResponseWriter, r *http.Request) {
	a.getJob(w, r, domain.JobKindTransformation)
}

func (a *App) TransformationsDelete(w http.ResponseWriter, r *http.Request) {
	a.deleteJob(w, r, domain.JobKindTransformation)
}

func (a *App) TransformationsRegenerate(w http.ResponseWriter, r *http.Request) {
	a.regenerateJob(w, r, domain.JobKindTransformation)
}

// respondSubmitted answers every submission with 202 and the caller's
// remaining balance. A dispatch rejection still lands here: it is a failed
// job, not an HTTP error.
func (a *App) respondSubmitted(w http.ResponseWriter, r *http.Request, job *domain.Job) {
	credits, err := a.Ledger.Balance(r.Context(), job.UserID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Credits: credits,
	})
}

func (a *App) listJobs(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	list, err := a.Service.ListJobs(r.Context(), a.currentUserID(r), kind)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": viewJobs(list)})
}

func (a *App) getJob(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	job, err := a.Service.GetJob(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.Kind != kind {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	a.json(w, http.StatusOK, viewJob(job))
}

func (a *App) deleteJob(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	job, err := a.Service.GetJob(r.Context(), userID, id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.Kind != kind {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if err := a.Service.DeleteJob(r.Context(), userID, id); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) regenerateJob(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	job, err := a.Service.GetJob(r.Context(), userID, id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.Kind != kind {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	fresh, err := a.Service.Regenerate(r.Context(), userID, id)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.respondSubmitted(w, r, fresh)
}

func optionalField(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
