package handlers

import (
	"encoding/json"
	"net/http"

	"propstage/internal/domain"
)

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	credits, err := a.Ledger.Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"credits":   credits,
		"unlimited": credits == domain.UnlimitedCredits,
	})
}

type creditsAddRequest struct {
	Amount int `json:"amount"`
}

func (a *App) CreditsAdd(w http.ResponseWriter, r *http.Request) {
	var req creditsAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	credits, err := a.Ledger.Add(r.Context(), a.currentUserID(r), req.Amount)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"credits": credits})
}

type creditsUpgradeRequest struct {
	Plan string `json:"plan"`
}

func (a *App) CreditsUpgrade(w http.ResponseWriter, r *http.Request) {
	var req creditsUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	userID := a.currentUserID(r)
	if err := a.Ledger.Upgrade(r.Context(), userID, domain.UserPlan(req.Plan)); err != nil {
		a.domainError(w, err)
		return
	}
	credits, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"plan": req.Plan, "credits": credits})
}
