package auth

import (
	"context"
	"fmt"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"golang.org/x/oauth2"
)

// OIDCAuthenticator validates bearer tokens against the configured issuer.
// All platform APIs sit behind it when OIDC is configured; extraction output
// is patient-level data.
type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
	}, nil
}

// ValidateToken checks the token against the issuer's introspection endpoint.
func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	source := a.config.TokenSource(ctx, &oauth2.Token{AccessToken: token})
	validated, err := source.Token()
	if err != nil {
		logger.Log.WithError(err).Debug("token validation failed")
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !validated.Valid() {
		return nil, fmt.Errorf("token expired")
	}

	claims := map[string]interface{}{
		"iss": a.issuer,
	}
	if sub := validated.Extra("sub"); sub != nil {
		claims["sub"] = sub
	}
	return claims, nil
}
