package stubnotary

import (
	"context"
	"sync"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/pkg/models"
)

// Step answers one submission.
type Step func(req models.OperationRequest) (models.RawReply, error)

func Ok(tiers Tiers) Step {
	return func(req models.OperationRequest) (models.RawReply, error) {
		return Reply(req, tiers), nil
	}
}

func Empty() Step {
	return func(models.OperationRequest) (models.RawReply, error) {
		return models.RawReply{}, nil
	}
}

func Fail(kind contracts.TransportErrorKind) Step {
	return func(req models.OperationRequest) (models.RawReply, error) {
		return nil, contracts.NewTransportError(kind, req.Operation(), nil)
	}
}

// Transport is a scripted contracts.Transport. Steps queued for an
// operation are consumed in order; the last one repeats.
type Transport struct {
	mu       sync.Mutex
	script   map[string][]Step
	calls    map[string]int
	requests []models.OperationRequest
}

func NewTransport() *Transport {
	return &Transport{
		script: make(map[string][]Step),
		calls:  make(map[string]int),
	}
}

func (t *Transport) On(operation string, steps ...Step) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script[operation] = append(t.script[operation], steps...)
	return t
}

func (t *Transport) Submit(_ context.Context, req models.OperationRequest) (models.RawReply, error) {
	t.mu.Lock()
	op := req.Operation()
	t.calls[op]++
	t.requests = append(t.requests, req)
	steps := t.script[op]
	var step Step
	switch len(steps) {
	case 0:
		step = Empty()
	case 1:
		step = steps[0]
	default:
		step = steps[0]
		t.script[op] = steps[1:]
	}
	t.mu.Unlock()
	return step(req)
}

// Calls returns how many times operation was submitted.
func (t *Transport) Calls(operation string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[operation]
}

// Operations returns submitted operation names in order.
func (t *Transport) Operations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.requests))
	for _, r := range t.requests {
		out = append(out, r.Operation())
	}
	return out
}

func (t *Transport) Requests() []models.OperationRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.OperationRequest(nil), t.requests...)
}
