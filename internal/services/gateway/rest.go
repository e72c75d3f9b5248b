package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ticket-resale/utils"
)

// RESTConfig configures the HTTP payment provider.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// REST talks to the payment provider over HTTP. The idempotency reference
// travels as an Idempotency-Key header, so the provider replays the
// original result for a retried request. A circuit breaker guards against
// hammering a degraded provider.
type REST struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	breaker *utils.CircuitBreaker
}

func NewREST(cfg *RESTConfig) *REST {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &REST{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: timeout},
		breaker: utils.NewCircuitBreaker("payment-gateway"),
	}
}

func (g *REST) GetProvider() Provider { return ProviderREST }

func (g *REST) Authorize(ctx context.Context, req *AuthorizeRequest) (*Hold, error) {
	var hold Hold
	if err := g.post(ctx, "/v1/authorizations", req.Reference, req, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (g *REST) Capture(ctx context.Context, req *CaptureRequest) (*Capture, error) {
	var capture Capture
	if err := g.post(ctx, "/v1/captures", req.Reference, req, &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

func (g *REST) Cancel(ctx context.Context, holdRef string) error {
	payload := map[string]string{"hold_ref": holdRef}
	return g.post(ctx, "/v1/cancellations", "cancel-"+holdRef, payload, nil)
}

func (g *REST) Transfer(ctx context.Context, req *TransferRequest) (*Transfer, error) {
	var transfer Transfer
	if err := g.post(ctx, "/v1/transfers", req.Reference, req, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (g *REST) Close(_ context.Context) error {
	g.hc.CloseIdleConnections()
	return nil
}

func (g *REST) post(ctx context.Context, path, reference string, payload, out any) error {
	_, err := g.breaker.Execute(ctx, func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("Idempotency-Key", reference)
		req.Header.Set("X-Request-ID", utils.RequestID())

		resp, err := g.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, raw)
		}
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return nil, fmt.Errorf("gateway %s: decode response: %w", path, err)
			}
		}
		return nil, nil
	})
	return err
}
