// Package api implements the story service's HTTP API for the twin.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/storyspoiler/storycheck/internal/twin/story/store"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

// Response messages of the story service.
const (
	msgCreated          = "Successfully created!"
	msgEdited           = "Successfully edited"
	msgDeleted          = "Deleted successfully!"
	msgNoSpoilers       = "No spoilers..."
	msgUnableToDelete   = "Unable to delete this story spoiler!"
	msgRequired         = "Title and description are required!"
	msgInvalidBody      = "Invalid request body"
	msgCredsRequired    = "Username and password are required!"
	msgInvalidCreds     = "Invalid username or password!"
	msgUnauthorized     = "Unauthorized"
	msgTokenIssueFailed = "Unable to issue access token"
)

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewHandler creates an API handler.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, tokens *TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: s, mw: mw, tokens: tokens, logger: logger}
}

// Routes mounts the story service routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// faults never reach /admin
		r.Use(h.mw.FaultInjection)

		r.Post("/User/Authentication", h.Authenticate)

		r.Route("/Story", func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Post("/Create", h.CreateStory)
			r.Put("/Edit/{id}", h.EditStory)
			r.Get("/All", h.ListStories)
			r.Delete("/Delete/{id}", h.DeleteStory)
		})
	})
}

type ctxKey struct{}

// subjectFrom returns the username of the verified token on ctx.
func subjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// authMiddleware requires a valid Bearer access token.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		sub, err := h.tokens.Verify(raw)
		if err != nil {
			h.logger.Debug("rejected token", zap.Error(err))
			twincore.Error(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sub)))
	})
}
