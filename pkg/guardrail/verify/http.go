package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kairo-hq/guardrails/pkg/telemetry/tracing"
)

// DefaultHTTPTimeout bounds a verification round trip when no timeout is configured.
const DefaultHTTPTimeout = 2 * time.Second

// ErrUnexpectedStatus indicates the verification service answered with a non-200 status.
var ErrUnexpectedStatus = errors.New("verification service returned unexpected status")

// HTTPVerifier calls a remote verification service with a JSON POST.
//
// Request:  {"evidence_hash": "<sha256 hex>"}
// Response: {"is_valid": true, "source": "seda"}
type HTTPVerifier struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
}

// HTTPOption customizes an HTTPVerifier.
type HTTPOption func(*HTTPVerifier)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(v *HTTPVerifier) {
		if client != nil {
			v.client = client
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(v *HTTPVerifier) {
		v.headers[key] = value
	}
}

// NewHTTPVerifier creates a verifier posting to endpoint. A timeout of zero uses
// DefaultHTTPTimeout.
func NewHTTPVerifier(endpoint string, timeout time.Duration, opts ...HTTPOption) *HTTPVerifier {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	v := &HTTPVerifier{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verifyRequest struct {
	EvidenceHash string `json:"evidence_hash"`
}

// Verify posts the evidence hash and decodes the verdict.
func (v *HTTPVerifier) Verify(ctx context.Context, evidenceHash string) (Verdict, error) {
	body, err := json.Marshal(verifyRequest{EvidenceHash: evidenceHash})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range v.headers {
		req.Header.Set(key, value)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := v.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("verification service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode verification response: %w", err)
	}

	return verdict, nil
}
