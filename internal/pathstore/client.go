// Package pathstore publishes refinement summaries to a pathstore key/value
// service. Publishing is optional; the service runs without it.
package pathstore

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
)

// ProtocolPrefix is the key under which protocol summaries are published.
const ProtocolPrefix = "corpus/protocols"

// RetryableError marks a failure worth retrying: rate limits, server
// errors and transport failures.
type RetryableError struct {
	Err        error
	StatusCode int
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retryable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Client communicates with the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ProtocolKey returns the key of a protocol's summary node.
func ProtocolKey(protocol string) string {
	return ProtocolPrefix + "/" + protocol
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value     any    `json:"value"`
	MergeMode string `json:"merge_mode,omitempty"`
	Source    string `json:"source,omitempty"`
}

// NodeResponse is the response from GET /kv/{key}.
type NodeResponse struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

// PutNode stores or updates a node at the given path.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/kv/"+key, body)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put node "+key, resp)
	}
	return nil
}

// GetNode retrieves a node by key. A missing node yields nil, nil.
func (c *Client) GetNode(ctx context.Context, key string) (*NodeResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/kv/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get node "+key, resp)
	}

	var node NodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

// DeleteNode deletes a node and optionally its children.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	u := c.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	resp, err := c.do(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("delete node "+key, resp)
	}
	return nil
}

// ListChildrenResponse is a single node from a prefix scan.
type ListChildrenResponse struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

// ListChildren does a prefix scan under the given key.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]ListChildrenResponse, error) {
	u := c.baseURL + "/kv/" + key + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list children "+key, resp)
	}

	var result struct {
		Nodes []ListChildrenResponse `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	return result.Nodes, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &RetryableError{Err: err}
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{Err: err, StatusCode: resp.StatusCode}
	}
	return err
}
