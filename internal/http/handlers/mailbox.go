package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"propstage/internal/domain"
)

type mailboxPushRequest struct {
	JobID  string `json:"jobId"`
	Kind   string `json:"kind"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MailboxPush appends an out-of-band completion signal for the poller to
// drain. Guarded by the shared callback secret when one is configured.
func (a *App) MailboxPush(w http.ResponseWriter, r *http.Request) {
	if a.Cfg != nil && a.Cfg.CallbackSecret != "" {
		provided := r.Header.Get("X-Callback-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.Cfg.CallbackSecret)) != 1 {
			a.error(w, http.StatusUnauthorized, "unauthorized", "invalid mailbox secret")
			return
		}
	}

	var req mailboxPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.JobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId is required")
		return
	}

	entry := domain.MailboxEntry{
		ID:         uuid.NewString(),
		JobID:      req.JobID,
		Kind:       domain.JobKind(req.Kind),
		Result:     req.Result,
		Error:      req.Error,
		ReceivedAt: time.Now().UTC(),
	}
	if err := a.Mailbox.Append(r.Context(), entry); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
