package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/exp/slog"

	"syncpoint/internal/app/client/config"
	"syncpoint/internal/domain/sync"
)

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string
}

func newHTTPClient(cfg *config.Config, log *slog.Logger) *httpClient {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}

	return &httpClient{
		client:    client,
		log:       log,
		baseURL:   scheme + cfg.ServerAddress,
		userAgent: "Syncpoint-Client/1.0",
	}
}

// HealthCheck verifies the server is reachable.
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// Sync runs one synchronization cycle on the server.
func (h *httpClient) Sync(ctx context.Context, req *sync.SyncRequest) (*sync.SyncResponse, error) {
	var resp sync.SyncResponse
	if err := h.doJSON(ctx, http.MethodPost, "/api/v1/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStatus fetches progress of a session by its id.
func (h *httpClient) SessionStatus(ctx context.Context, sessionID string) (*sync.StatusResponse, error) {
	var resp sync.StatusResponse
	if err := h.doJSON(ctx, http.MethodGet, "/api/v1/sync/sessions/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conflicts lists unresolved conflicts recorded for the client.
func (h *httpClient) Conflicts(ctx context.Context, clientID string) ([]sync.Conflict, error) {
	var resp struct {
		Conflicts []sync.Conflict `json:"conflicts"`
	}
	if err := h.doJSON(ctx, http.MethodGet, "/api/v1/sync/conflicts?client_id="+url.QueryEscape(clientID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conflicts, nil
}

// ResolveConflict applies a resolution policy to a pending conflict.
func (h *httpClient) ResolveConflict(ctx context.Context, conflictID string, policy sync.Policy) (*sync.Conflict, error) {
	body := sync.ResolveConflictRequest{Resolution: policy}
	var resp struct {
		Conflict *sync.Conflict `json:"conflict"`
	}
	if err := h.doJSON(ctx, http.MethodPost, "/api/v1/sync/conflicts/"+conflictID+"/resolve", body, &resp); err != nil {
		return nil, err
	}
	return resp.Conflict, nil
}

// Stats fetches cumulative synchronization counters for the client.
func (h *httpClient) Stats(ctx context.Context, clientID string) (*sync.Stats, error) {
	var resp sync.Stats
	if err := h.doJSON(ctx, http.MethodGet, "/api/v1/sync/stats?client_id="+url.QueryEscape(clientID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *httpClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Detail != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
