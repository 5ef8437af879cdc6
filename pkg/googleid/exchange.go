package googleid

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CodeExchanger turns an authorization code from Google's popup flow into a
// verified Identity by redeeming it for an ID token.
type CodeExchanger struct {
	conf       *oauth2.Config
	verifier   *Verifier
	httpClient *http.Client
}

// ExchangerOption configures a CodeExchanger.
type ExchangerOption func(*CodeExchanger)

// WithEndpoint overrides Google's OAuth endpoint.
func WithEndpoint(ep oauth2.Endpoint) ExchangerOption {
	return func(c *CodeExchanger) {
		if c.conf != nil {
			c.conf.Endpoint = ep
		}
	}
}

// WithExchangeHTTPClient sets the client used for the token request.
func WithExchangeHTTPClient(hc *http.Client) ExchangerOption {
	return func(c *CodeExchanger) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewCodeExchanger creates an exchanger. Without a client secret the flow is
// disabled and Exchange returns ErrCodeFlowDisabled.
func NewCodeExchanger(cfg Config, verifier *Verifier, opts ...ExchangerOption) *CodeExchanger {
	c := &CodeExchanger{
		verifier:   verifier,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	if cfg.ClientSecret != "" && cfg.ClientID != "" {
		c.conf = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the code flow is configured.
func (c *CodeExchanger) Enabled() bool {
	return c != nil && c.conf != nil && c.verifier != nil
}

// Exchange redeems code and verifies the returned ID token.
func (c *CodeExchanger) Exchange(ctx context.Context, code string) (*Identity, error) {
	if !c.Enabled() {
		return nil, ErrCodeFlowDisabled
	}
	if code == "" {
		return nil, ErrInvalidAuthCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAuthCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrInvalidIdentityToken)
	}

	return c.verifier.Verify(ctx, idToken)
}
