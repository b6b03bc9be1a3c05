package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"campus_connect/internal/config"
	"campus_connect/internal/domain"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// MediaService talks to the external media host. Uploads happen before a
// message persists; destroys are best-effort cleanup on delete paths.
type MediaService interface {
	Upload(ctx context.Context, data []byte, name, kind string) (*domain.Attachment, error)
	Destroy(ctx context.Context, publicID string) error
}

type mediaService struct {
	cfg    config.MediaConfig
	client *http.Client
	log    logger.Logger
}

func NewMediaService(cfg config.MediaConfig, log logger.Logger) MediaService {
	return &mediaService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type uploadResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

func (s *mediaService) Upload(ctx context.Context, data []byte, name, kind string) (*domain.Attachment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	_ = writer.WriteField("folder", s.cfg.Folder)
	_ = writer.WriteField("resource_type", kind)
	if err := writer.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/upload", s.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(s.cfg.APIKey, s.cfg.APISecret)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("Media upload failed", "error", err)
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "media upload")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.log.Error("Media upload rejected", "status", resp.StatusCode, "body", string(payload))
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "media upload")
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstream, "media upload response")
	}

	return &domain.Attachment{
		URL:      result.URL,
		PublicID: result.PublicID,
		Kind:     kind,
		Name:     name,
	}, nil
}

func (s *mediaService) Destroy(ctx context.Context, publicID string) error {
	url := fmt.Sprintf("%s/destroy/%s", s.cfg.BaseURL, publicID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.cfg.APIKey, s.cfg.APISecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, "media destroy")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return apperrors.Wrap(apperrors.ErrUpstream, fmt.Sprintf("media destroy status %d", resp.StatusCode))
	}
	return nil
}
