package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"time"

	"propstage/internal/domain"
)

// callbackRedirectDelay is how long the interstitial page shows its status
// before sending the browser back to the listings view.
const callbackRedirectDelay = 3 * time.Second

const callbackPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="%d;url=%s">
<title>propstage</title>
</head>
<body>
<p>%s</p>
<p>Returning to your listings&hellip;</p>
</body>
</html>`

// Callback is the provider redirect ingress. The provider (or the browser
// window it controls) lands here with the completion encoded as query
// parameters; we translate them into a completion signal, apply it, and
// answer with a small page that bounces back to the app.
//
// Parameters: type=transformation|description, transformationId or
// descriptionId, imageUrl or text for the result, error for failures, and
// sig when a callback secret is configured.
func (a *App) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := domain.JobKind(q.Get("type"))
	var jobID, result string
	switch kind {
	case domain.JobKindTransformation:
		jobID = q.Get("transformationId")
		result = q.Get("imageUrl")
	case domain.JobKindDescription:
		jobID = q.Get("descriptionId")
		result = q.Get("text")
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown callback type")
		return
	}
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "missing job identifier")
		return
	}

	if a.Cfg != nil && a.Cfg.CallbackSecret != "" {
		if !validCallbackSig(a.Cfg.CallbackSecret, jobID, q.Get("sig")) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "invalid callback signature")
			return
		}
	}

	sig := domain.CompletionSignal{
		JobID:      jobID,
		Kind:       kind,
		Result:     result,
		Error:      q.Get("error"),
		ReceivedAt: time.Now().UTC(),
	}
	if err := a.Reconciler.Apply(r.Context(), sig); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("callback: apply failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not record completion")
		return
	}

	message := "Your media is ready."
	if sig.Error != "" {
		message = "Generation failed: " + html.EscapeString(sig.Error)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, callbackPage, int(callbackRedirectDelay.Seconds()), "/", message)
}

// validCallbackSig checks the hex HMAC-SHA256 of the job ID.
func validCallbackSig(secret, jobID, sig string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(jobID))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}
