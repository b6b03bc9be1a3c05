package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"campus_connect/internal/config"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// ModerationService screens content before it persists. Both write paths
// (REST and socket) run the same checks.
type ModerationService interface {
	CheckText(ctx context.Context, text string) (*ModerationResult, error)
	CheckImage(ctx context.Context, imageURL string) (*ModerationResult, error)
}

type ModerationResult struct {
	Safe    bool   `json:"safe"`
	Details string `json:"details,omitempty"`
}

type moderationService struct {
	cfg    config.ModerationConfig
	client *http.Client
	log    logger.Logger
}

func NewModerationService(cfg config.ModerationConfig, log logger.Logger) ModerationService {
	return &moderationService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (s *moderationService) CheckText(ctx context.Context, text string) (*ModerationResult, error) {
	return s.check(ctx, "/check/text", map[string]string{"text": text})
}

func (s *moderationService) CheckImage(ctx context.Context, imageURL string) (*ModerationResult, error) {
	return s.check(ctx, "/check/image", map[string]string{"url": imageURL})
}

func (s *moderationService) check(ctx context.Context, path string, payload map[string]string) (*ModerationResult, error) {
	// No moderation endpoint configured: treat everything as safe.
	if s.cfg.BaseURL == "" {
		return &ModerationResult{Safe: true}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("Moderation check failed", "path", path, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "moderation service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("Moderation check rejected", "path", path, "status", resp.StatusCode)
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "moderation service")
	}

	var result ModerationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "moderation response")
	}
	return &result, nil
}
