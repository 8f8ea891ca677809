package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

const maxListResponseBytes = 2 << 20

// HTTPClient lists operations from an http-transport provider. The provider
// answers GET <endpoint> with {"operations": [...]}.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

type listOperationsResponse struct {
	Operations []contractx.Operation `json:"operations"`
}

func NewHTTPClient(p contractx.CapabilityProvider) *HTTPClient {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(p.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) ListOperations(ctx context.Context) ([]contractx.Operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list_operations request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute list_operations request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxListResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read list_operations response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("provider http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed listOperationsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode list_operations response: %w", err)
	}
	return parsed.Operations, nil
}

// StaticClient serves a provider's declared in-process operations, used for
// built-in capabilities that need no network hop.
type StaticClient struct {
	operations []contractx.Operation
}

func NewStaticClient(p contractx.CapabilityProvider) *StaticClient {
	ops := make([]contractx.Operation, len(p.Operations))
	copy(ops, p.Operations)
	return &StaticClient{operations: ops}
}

func (c *StaticClient) ListOperations(ctx context.Context) ([]contractx.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops := make([]contractx.Operation, len(c.operations))
	copy(ops, c.operations)
	return ops, nil
}
