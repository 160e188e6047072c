package attestation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// RESTOption configures a RESTTransport.
type RESTOption func(*RESTTransport)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(t *RESTTransport) {
		t.http = c
	}
}

// RESTTransport looks VAAs up through the REST gateway of guardian public RPC hosts. Each
// lookup starts at the next host and falls through the others on failure.
type RESTTransport struct {
	hosts []string
	http  *http.Client
	next  atomic.Uint32
}

var _ Transport = (*RESTTransport)(nil)

// NewRESTTransport creates a transport over hosts such as "https://api.wormholescan.io".
func NewRESTTransport(hosts []string, opts ...RESTOption) (*RESTTransport, error) {
	if len(hosts) == 0 {
		return nil, errors.New("at least one guardian host is required")
	}

	t := &RESTTransport{
		hosts: make([]string, len(hosts)),
		http:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for i, h := range hosts {
		t.hosts[i] = strings.TrimSuffix(h, "/")
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

type signedVAAResponse struct {
	VAABytes string `json:"vaaBytes"`
}

// GetSignedVAA implements Transport. The error joins the errors of every host tried.
func (t *RESTTransport) GetSignedVAA(ctx context.Context, id MessageID) ([]byte, error) {
	start := int(t.next.Add(1)-1) % len(t.hosts)

	var errs []error
	for i := range t.hosts {
		host := t.hosts[(start+i)%len(t.hosts)]

		vaa, err := t.get(ctx, host, id)
		if err == nil {
			return vaa, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", host, err))
	}

	return nil, errors.Join(errs...)
}

func (t *RESTTransport) get(ctx context.Context, host string, id MessageID) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%d", host, id.EmitterChain, id.EmitterAddress, id.Sequence)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrVAANotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out signedVAAResponse
	if err = json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.VAABytes == "" {
		return nil, errors.New("response carries no vaaBytes")
	}

	vaa, err := base64.StdEncoding.DecodeString(out.VAABytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vaaBytes: %w", err)
	}

	return vaa, nil
}
