// Package handlers exposes the HTTP surface of the service. Handlers stay
// thin: decode, delegate to the service layer, encode.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
	"propstage/internal/infra"
	"propstage/internal/jobs"
	"propstage/internal/ledger"
	"propstage/internal/middleware"
	"propstage/internal/notify"
)

type App struct {
	Cfg        *infra.Config
	Logger     zerolog.Logger
	Service    *jobs.Service
	Ledger     *ledger.Ledger
	Reconciler *jobs.Reconciler
	Projects   domain.ProjectRepository
	Mailbox    domain.MailboxRepository
	Stats      domain.StatsRepository
	Hub        *notify.Hub
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"code": slug, "message": message})
}

// domainError maps domain sentinels onto HTTP statuses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "not allowed")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedPlan):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserFromContext(r.Context())
}
