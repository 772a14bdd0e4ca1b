// Package sdk is a small Go client for the losdharvest control API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client talks to a running losdharvest server.
type Client struct {
	BaseURL    string
	Token      string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a client for the given base URL, e.g. "http://localhost:8484/v0".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// APIError carries the status code and body of a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// Run is a harvest run summary.
type Run struct {
	ID         string `json:"id"`
	SourceURL  string `json:"source_url"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Unchanged  int    `json:"unchanged"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// HarvestObject is one reconciled dataset state.
type HarvestObject struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	GUID     string `json:"guid"`
	Source   string `json:"source"`
	Status   string `json:"status"`
	Current  bool   `json:"current"`
	RecordID string `json:"record_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Error    string `json:"error,omitempty"`
	Created  string `json:"created"`
}

// ObjectFilters narrow ListObjects.
type ObjectFilters struct {
	RunID   string
	GUID    string
	Current bool
	Limit   int
}

// TriggerRun starts a harvest run and waits for its summary.
func (c *Client) TriggerRun(ctx context.Context) (Run, error) {
	var run Run
	err := c.do(ctx, http.MethodPost, "/runs", nil, &run)
	return run, err
}

// ListRuns returns up to limit recent runs.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Items []Run `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetRun fetches one run by id.
func (c *Client) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID), nil, &run)
	return run, err
}

// ListObjects returns harvest objects matching the filters.
func (c *Client) ListObjects(ctx context.Context, f ObjectFilters) ([]HarvestObject, error) {
	q := url.Values{}
	if f.RunID != "" {
		q.Set("run_id", f.RunID)
	}
	if f.GUID != "" {
		q.Set("guid", f.GUID)
	}
	if f.Current {
		q.Set("current", "true")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/objects"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Items []HarvestObject `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	} else if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
