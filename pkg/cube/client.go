// Package cube is the REST client for the semantic-layer query engine:
// metadata fetching and query execution.
package cube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/logging"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

// ExecutionError is a query rejected by the engine: the engine answered,
// but with an error payload instead of rows. Transport failures are
// returned as ordinary errors, not ExecutionError.
type ExecutionError struct {
	Message string
	// Code is the HTTP status when the engine rejected the request outright.
	Code int
}

func (e *ExecutionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("query engine error (HTTP %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("query engine error: %s", e.Message)
}

// Result holds the rows returned by a successful query.
type Result struct {
	Rows []map[string]any `json:"data"`
}

// Client talks to the Cube REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Cube API client.
func NewClient(cfg config.CubeConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    cfg.APIURL,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("cube"),
	}
}

// Meta fetches the schema metadata from the engine's /meta endpoint.
func (c *Client) Meta(ctx context.Context) (*schema.Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/meta", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build meta request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meta request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meta request returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var meta schema.Meta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode meta response: %w", err)
	}

	c.logger.Debug("fetched schema metadata", zap.Int("cubes", len(meta.Cubes)))
	return &meta, nil
}

// loadResponse is the /load envelope: either data rows or an error string.
type loadResponse struct {
	Data  []map[string]any `json:"data"`
	Error string           `json:"error"`
}

// Load executes a query via the engine's /load endpoint. Engine rejections
// come back as *ExecutionError; transport and decoding failures as plain
// errors.
func (c *Client) Load(ctx context.Context, payload *models.QueryPayload) (*Result, error) {
	if payload.IsEmpty() {
		return nil, fmt.Errorf("query must have at least one dimension or measure")
	}

	reqBody, err := json.Marshal(map[string]any{"query": payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/load", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build load request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read load response: %w", err)
	}

	var decoded loadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ExecutionError{Message: string(body), Code: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to decode load response: %w", err)
	}

	if decoded.Error != "" {
		c.logger.Warn("query rejected by engine",
			zap.String("error", logging.TruncateText(decoded.Error)),
			zap.Int("status", resp.StatusCode))
		code := 0
		if resp.StatusCode != http.StatusOK {
			code = resp.StatusCode
		}
		return nil, &ExecutionError{Message: decoded.Error, Code: code}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ExecutionError{Message: string(body), Code: resp.StatusCode}
	}

	c.logger.Info("query executed",
		zap.Int("rows", len(decoded.Data)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Rows: decoded.Data}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
}
