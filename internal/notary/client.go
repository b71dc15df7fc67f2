package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/pkg/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxReplyBytes      = 4 << 20
)

// EndpointResolver maps a notary id onto its address.
type EndpointResolver interface {
	ServerEndpoint(notaryID string) (string, bool)
}

// Client submits requests to notaries over JSON/HTTP.
type Client struct {
	resolver   EndpointResolver
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func NewClient(resolver EndpointResolver, opts ...Option) *Client {
	c := &Client{
		resolver:   resolver,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit performs one round trip. Every failure is a *contracts.TransportError.
// A 200 response with an empty body is returned as an empty RawReply, which
// the interpreter reads as "no reply".
func (c *Client) Submit(ctx context.Context, req models.OperationRequest) (reply models.RawReply, retErr error) {
	op := req.Operation()
	if c.resolver == nil {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, op, errors.New("no endpoint resolver configured"))
	}
	addr, ok := c.resolver.ServerEndpoint(req.NotaryID())
	if !ok {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, op,
			fmt.Errorf("no server contract for notary %q", req.NotaryID()))
	}
	base, err := EndpointURL(addr)
	if err != nil {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, op, err)
	}
	body, err := json.Marshal(NewWireRequest(req))
	if err != nil {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+RequestPath, bytes.NewReader(body))
	if err != nil {
		return nil, contracts.NewTransportError(contracts.TransportPrecondition, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := strings.TrimSpace(req.RequestID()); id != "" {
		httpReq.Header.Set("X-OTME-Request-ID", id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyDoError(ctx, op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = contracts.NewTransportError(contracts.TransportProtocol, op, closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, classifyDoError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusOK {
		return models.RawReply(raw), nil
	}
	rej := decodeRejection(raw)
	cause := rejectionError(resp.StatusCode, rej)
	switch {
	case rej.Error == RejectionRequestNumber || resp.StatusCode == http.StatusConflict:
		return nil, contracts.NewTransportError(contracts.TransportOutOfSync, op, cause)
	case rej.Error == RejectionUnavailable || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, contracts.NewTransportError(contracts.TransportUnreachable, op, cause)
	default:
		return nil, contracts.NewTransportError(contracts.TransportProtocol, op, cause)
	}
}

// decodeRejection returns the zero value for bodies that are not a
// WireRejection.
func decodeRejection(raw []byte) WireRejection {
	var rej WireRejection
	if err := json.Unmarshal(raw, &rej); err != nil {
		return WireRejection{}
	}
	rej.Error = strings.TrimSpace(rej.Error)
	return rej
}

func rejectionError(status int, rej WireRejection) error {
	switch {
	case rej.Error == "":
		return fmt.Errorf("notary status %d", status)
	case rej.ExpectedRequestNumber > 0:
		return fmt.Errorf("notary status %d: %s (expected request number %d)", status, rej.Error, rej.ExpectedRequestNumber)
	default:
		return fmt.Errorf("notary status %d: %s", status, rej.Error)
	}
}

// classifyDoError separates failures that prove the request never left
// (dial errors) from those after which the notary may have acted.
func classifyDoError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contracts.NewTransportError(contracts.TransportTimeout, op, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return contracts.NewTransportError(contracts.TransportUnreachable, op, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return contracts.NewTransportError(contracts.TransportUnreachable, op, err)
	}
	return contracts.NewTransportError(contracts.TransportTimeout, op, err)
}
