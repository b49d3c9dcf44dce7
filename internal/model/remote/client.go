// Package remote binds model.Model to an inference server that runs the
// pretrained network and returns raw score vectors over HTTP.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/gltr/internal/logger"
	"github.com/samcharles93/gltr/internal/model"
)

const (
	LogitsPath  = "/v1/logits"
	ReleasePath = "/v1/cache/release"

	// RequestIDHeader carries a per-request id the server can echo in its logs.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 4 << 10
)

// LogitsRequest asks for the scores of input_ids. With Positions set, only
// those positions are returned for every sequence.
type LogitsRequest struct {
	Model     string  `json:"model"`
	Device    string  `json:"device,omitempty"`
	InputIDs  [][]int `json:"input_ids"`
	Positions []int   `json:"positions,omitempty"`
}

// LogitsResponse holds scores as [sequence][position][vocab].
type LogitsResponse struct {
	Logits [][][]float32 `json:"logits"`
}

// ReleaseRequest asks the server to free cached accelerator memory.
type ReleaseRequest struct {
	Model  string `json:"model"`
	Device string `json:"device,omitempty"`
}

// ErrorResponse is the error envelope the server answers with on failure.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StatusError reports a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inference server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("inference server returned %d: %s", e.Code, e.Message)
}

type Options struct {
	Endpoint string
	// Model is the identifier the server loads, e.g. aubmindlab/aragpt2-base.
	Model string
	// Device is forwarded verbatim after normalization (auto, cpu or cuda).
	Device     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client implements model.Model, model.PositionForwarder and
// model.CacheReleaser over HTTP.
type Client struct {
	endpoint string
	model    string
	device   string
	hc       *http.Client
	log      logger.Logger
}

var (
	_ model.Model             = (*Client)(nil)
	_ model.PositionForwarder = (*Client)(nil)
	_ model.CacheReleaser     = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("remote model: endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("remote model: endpoint %q must be an http(s) URL", opts.Endpoint)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("remote model: model id is required")
	}
	device, err := model.NormalizeDevice(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("remote model: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		endpoint: endpoint,
		model:    opts.Model,
		device:   device,
		hc:       hc,
		log:      log.With("component", "remote", "endpoint", endpoint),
	}, nil
}

func (c *Client) Forward(ctx context.Context, batch [][]int) ([][][]float32, error) {
	var resp LogitsResponse
	req := LogitsRequest{Model: c.model, Device: c.device, InputIDs: batch}
	if err := c.post(ctx, LogitsPath, req, &resp); err != nil {
		return nil, err
	}
	if err := model.CheckShape(batch, resp.Logits); err != nil {
		return nil, err
	}
	return resp.Logits, nil
}

func (c *Client) ForwardAt(ctx context.Context, batch [][]int, pos int) ([][]float32, error) {
	var resp LogitsResponse
	req := LogitsRequest{Model: c.model, Device: c.device, InputIDs: batch, Positions: []int{pos}}
	if err := c.post(ctx, LogitsPath, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Logits) != len(batch) {
		return nil, fmt.Errorf("forward at %d: got %d sequences for a batch of %d", pos, len(resp.Logits), len(batch))
	}
	out := make([][]float32, len(batch))
	for i, seq := range resp.Logits {
		if len(seq) != 1 {
			return nil, fmt.Errorf("forward at %d: sequence %d has %d score vectors, want 1", pos, i, len(seq))
		}
		out[i] = seq[0]
	}
	return out, nil
}

func (c *Client) ReleaseCache(ctx context.Context) error {
	return c.post(ctx, ReleasePath, ReleaseRequest{Model: c.model, Device: c.device}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, id)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug("remote call", "path", path, "request_id", id, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{Code: resp.StatusCode}
	var env ErrorResponse
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		se.Message = env.Error.Message
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}
