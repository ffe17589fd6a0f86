// Package remote is the HTTP client for the upstream resource server: the
// system of record the engine pushes batches to and pulls deltas from.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

const userAgent = "Syncpoint/1.0"

type Client struct {
	client  *http.Client
	log     *slog.Logger
	baseURL string
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		client:  client,
		log:     log.With(slog.String("component", "remote_client")),
		baseURL: baseURL,
	}
}

// HealthCheck verifies the upstream server answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return nil
}

type batchRequest struct {
	ClientID string            `json:"client_id"`
	Entries  []sync.BatchEntry `json:"entries"`
}

type batchResponse struct {
	Results []sync.BatchResult `json:"results"`
}

// Batch submits an ordered transaction of mutations. The call fails as a
// whole on transport errors; per-entry statuses are in the results.
func (c *Client) Batch(ctx context.Context, clientID string, entries []sync.BatchEntry) ([]sync.BatchResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/batch", batchRequest{
		ClientID: clientID,
		Entries:  entries,
	})
	if err != nil {
		return nil, err
	}

	var parsed batchResponse
	if err := c.parseResponse(resp, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// Search pages through records of one type modified since the watermark.
func (c *Client) Search(ctx context.Context, resourceType string, modifiedSince time.Time, limit, offset int) (*sync.RemotePage, error) {
	q := url.Values{}
	if !modifiedSince.IsZero() {
		q.Set("modified_since", modifiedSince.UTC().Format(time.RFC3339Nano))
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	path := "/api/v1/resources/" + url.PathEscape(resourceType) + "?" + q.Encode()
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page sync.RemotePage
	if err := c.parseResponse(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrRemoteUnavailable, err)
	}
	return resp, nil
}

func (c *Client) parseResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("upstream status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
