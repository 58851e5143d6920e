package storyapi

import (
	"context"

	"go.uber.org/zap"
)

// Connect logs in with creds and returns a Client carrying the token.
// Any failure is a KindAuth error and no client is returned.
func Connect(ctx context.Context, baseURL string, creds Credentials, logger *zap.Logger) (*Client, error) {
	auth := NewAuthenticator(baseURL, logger)
	defer auth.Close()

	tok, err := auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return NewClient(baseURL, tok, logger)
}
