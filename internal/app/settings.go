package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/domain"
)

const keyScriptURL = "script_url"

// EndpointTarget is the gateway whose endpoint can be swapped at runtime.
type EndpointTarget interface {
	Endpoint() string
	SetEndpoint(u string)
	Prefix() string
}

// SettingsService persists the backend endpoint. A saved value wins over
// the one from the environment.
type SettingsService struct {
	kv     domain.KeyValueStore
	target EndpointTarget
}

func NewSettingsService(kv domain.KeyValueStore, t EndpointTarget) *SettingsService {
	return &SettingsService{kv: kv, target: t}
}

// Apply loads a saved endpoint into the gateway, if one exists.
func (s *SettingsService) Apply(ctx context.Context) error {
	var saved string
	ok, err := s.kv.Get(ctx, keyScriptURL, &saved)
	if err != nil {
		return fmt.Errorf("load endpoint: %w", err)
	}
	if !ok || strings.TrimSpace(saved) == "" {
		return nil
	}
	s.target.SetEndpoint(saved)
	log.Info().Str("endpoint", saved).Msg("using saved endpoint")
	return nil
}

func (s *SettingsService) Endpoint() string { return s.target.Endpoint() }

// SetEndpoint validates, saves and activates a new endpoint.
func (s *SettingsService) SetEndpoint(ctx context.Context, u string) error {
	u = strings.TrimSpace(u)
	if err := domain.ValidateEndpoint(u, s.target.Prefix()); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, keyScriptURL, u); err != nil {
		return fmt.Errorf("save endpoint: %w", err)
	}
	s.target.SetEndpoint(u)
	return nil
}
