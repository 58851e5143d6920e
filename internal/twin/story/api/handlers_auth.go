package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
}

// Authenticate handles POST /api/User/Authentication.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Username == "" || req.Password == "" {
		twincore.Error(w, http.StatusBadRequest, msgCredsRequired)
		return
	}

	u, err := h.store.Authenticate(req.Username, req.Password)
	if err != nil {
		twincore.Error(w, http.StatusUnauthorized, msgInvalidCreds)
		return
	}

	token, err := h.tokens.Issue(u.Username)
	if err != nil {
		h.logger.Error("issuing token", zap.Error(err))
		twincore.Error(w, http.StatusInternalServerError, msgTokenIssueFailed)
		return
	}

	twincore.JSON(w, http.StatusOK, loginResponse{Username: u.Username, AccessToken: token})
}
