package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"propstage/internal/domain"
)

type projectCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type projectView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func viewProject(p *domain.Project) projectView {
	return projectView{ID: p.ID, Name: p.Name, Address: p.Address, CreatedAt: p.CreatedAt}
}

func (a *App) ProjectsCreate(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	project := &domain.Project{
		ID:      uuid.NewString(),
		UserID:  a.currentUserID(r),
		Name:    req.Name,
		Address: req.Address,
	}
	if err := a.Projects.Create(r.Context(), project); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, viewProject(project))
}

func (a *App) ProjectsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.Projects.ListByUser(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	out := make([]projectView, 0, len(list))
	for i := range list {
		out = append(out, viewProject(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"projects": out})
}

func (a *App) ProjectsGet(w http.ResponseWriter, r *http.Request) {
	project, err := a.ownedProject(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewProject(project))
}

// ProjectsDelete removes the project and every job attached to it.
func (a *App) ProjectsDelete(w http.ResponseWriter, r *http.Request) {
	project, err := a.ownedProject(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Service.DeleteProject(r.Context(), project.UserID, project.ID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ProjectsJobs(w http.ResponseWriter, r *http.Request) {
	project, err := a.ownedProject(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	list, err := a.Service.ListProjectJobs(r.Context(), project.UserID, project.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": viewJobs(list)})
}

// ownedProject fetches the path project and hides other users' projects
// behind not-found.
func (a *App) ownedProject(r *http.Request) (*domain.Project, error) {
	project, err := a.Projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if project.UserID != a.currentUserID(r) {
		return nil, domain.ErrNotFound
	}
	return project, nil
}
