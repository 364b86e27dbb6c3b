// Package workflow implements the compute provider over the external
// scoring workflow's HTTP API in blocking response mode.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
)

const (
	contentType    = "application/json"
	defaultTimeout = 120 * time.Second
	userAgent      = "resume-match-pro (match orchestrator)"
)

// Client calls the scoring workflow over HTTP(S).
type Client struct {
	endpoint string
	apiKey   string
	logger   *zap.Logger

	HTTPClient *http.Client
	UserAgent  string
}

// New creates a workflow client. The timeout bounds a single scoring call;
// zero selects the default. The upstream regularly takes seconds per call.
func New(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}
}

type computeRequest struct {
	SubjectText    string  `json:"subjectText"`
	ReferenceText  string  `json:"referenceText"`
	AuxiliaryScore float64 `json:"auxiliaryScore"`
	Phase          string  `json:"phase"`
}

type computeResponse struct {
	Data struct {
		Outputs map[string]any `json:"outputs"`
	} `json:"data"`
}

// Compute performs one synchronous scoring call and coerces the response
// into the strict result model.
func (c *Client) Compute(ctx context.Context, req compute.Request) (*compute.Result, error) {
	body, err := json.Marshal(computeRequest{
		SubjectText:    req.SubjectText,
		ReferenceText:  req.ReferenceText,
		AuxiliaryScore: req.AuxiliaryScore,
		Phase:          req.Phase.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", compute.ErrUpstreamRejected, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", compute.ErrUpstreamRejected, err)
	}
	c.setHeaders(httpReq)

	c.logger.Debug("workflow compute request",
		zap.String("endpoint", c.endpoint),
		zap.String("phase", req.Phase.String()),
		zap.Int("subject_bytes", len(req.SubjectText)),
		zap.Int("reference_bytes", len(req.ReferenceText)),
	)

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("workflow compute response",
		zap.String("status", resp.Status),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := classifyStatus(resp.StatusCode, resp.Status); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var decoded computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", compute.ErrUpstreamUnavailable, err)
	}

	if decoded.Data.Outputs == nil {
		return nil, fmt.Errorf("%w: response has no outputs", compute.ErrUpstreamRejected)
	}

	return compute.ResultFromLoose(decoded.Data.Outputs), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
}

func classifyTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", compute.ErrUpstreamTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", compute.ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %v", compute.ErrUpstreamUnavailable, err)
	}
}

func classifyStatus(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s", compute.ErrUpstreamTimeout, status)
	case code == http.StatusTooManyRequests:
		// Rate limiting is transient; let the batch retry budget absorb it.
		return fmt.Errorf("%w: %s", compute.ErrUpstreamUnavailable, status)
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: %s", compute.ErrUpstreamRejected, status)
	default:
		return fmt.Errorf("%w: %s", compute.ErrUpstreamUnavailable, status)
	}
}
