package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var ErrReporterUnavailable = errors.New("score reporter request failed")

const defaultReporterTimeout = 10 * time.Second

type HTTPReporterConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

type httpReporter struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPReporter builds a ScoreReporter that talks to the platform's REST
// API. BaseURL must include the scheme.
func NewHTTPReporter(cfg HTTPReporterConfig) (ScoreReporter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("reporter base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid reporter base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultReporterTimeout
	}
	return &httpReporter{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
	}, nil
}

func (r *httpReporter) ReportResult(ctx context.Context, externalSetID string, winnerID int, games []GameResult) (*SetMutationResponse, error) {
	body := struct {
		WinnerID int          `json:"winnerId"`
		GameData []GameResult `json:"gameData"`
	}{WinnerID: winnerID, GameData: games}
	return r.post(ctx, fmt.Sprintf("/sets/%s/report", url.PathEscape(externalSetID)), body)
}

func (r *httpReporter) ResetResult(ctx context.Context, externalSetID string, cascade bool) (*SetMutationResponse, error) {
	body := struct {
		Cascade bool `json:"cascade"`
	}{Cascade: cascade}
	return r.post(ctx, fmt.Sprintf("/sets/%s/reset", url.PathEscape(externalSetID)), body)
}

func (r *httpReporter) MarkCalled(ctx context.Context, externalSetID string) (*SetMutationResponse, error) {
	return r.post(ctx, fmt.Sprintf("/sets/%s/call", url.PathEscape(externalSetID)), nil)
}

func (r *httpReporter) MarkInProgress(ctx context.Context, externalSetID string) (*SetMutationResponse, error) {
	return r.post(ctx, fmt.Sprintf("/sets/%s/start", url.PathEscape(externalSetID)), nil)
}

func (r *httpReporter) post(ctx context.Context, path string, payload interface{}) (*SetMutationResponse, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reporter payload: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build reporter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReporterUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrReporterUnavailable, path, resp.StatusCode, string(snippet))
	}

	var out SetMutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode reporter response: %w", err)
	}
	return &out, nil
}
