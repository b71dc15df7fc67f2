// Package dispatch turns a call into one numbered, identified request and
// submits it through the transport port.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/platform/metrics"
	"otme/go-client/internal/platform/ratelimiter"
	"otme/go-client/pkg/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentName  = "dispatch"
	tracerName     = "otme/dispatch"
	defaultTimeout = 20 * time.Second
)

// Call describes one request before it is numbered.
type Call struct {
	NotaryID  string
	NymID     string
	AccountID string
	AssetID   string
	Operation string
	Params    map[string]string
	// CorrelationID ties log lines of one workflow together. Generated when
	// empty.
	CorrelationID string
}

// Submission is what a single round trip produced. Request is set as soon
// as the request was numbered, even when the round trip failed.
type Submission struct {
	Request       models.OperationRequest
	Reply         models.RawReply
	CorrelationID string
	Elapsed       time.Duration
}

// Dispatcher numbers, identifies and submits requests. It makes exactly
// one attempt per call; retry decisions belong to the caller.
type Dispatcher struct {
	transport contracts.Transport
	sequencer contracts.Sequencer
	limiter   *ratelimiter.MapLimiter
	timeout   time.Duration
	tracer    trace.Tracer
	logger    *slog.Logger
	metrics   *metrics.Collectors
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithLimiter(l *ratelimiter.MapLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(transport contracts.Transport, sequencer contracts.Sequencer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		sequencer: sequencer,
		timeout:   defaultTimeout,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch sends operation for (notaryID, nymID) and returns the raw
// reply. Every failure is a *contracts.TransportError.
func (d *Dispatcher) Dispatch(ctx context.Context, notaryID, nymID, operation string, params map[string]string) (models.RawReply, error) {
	sub, err := d.DispatchRequest(ctx, Call{
		NotaryID:  notaryID,
		NymID:     nymID,
		Operation: operation,
		Params:    params,
	})
	return sub.Reply, err
}

func (d *Dispatcher) DispatchRequest(ctx context.Context, call Call) (Submission, error) {
	op := strings.TrimSpace(call.Operation)
	sub := Submission{CorrelationID: strings.TrimSpace(call.CorrelationID)}
	if sub.CorrelationID == "" {
		sub.CorrelationID = uuid.NewString()
	}
	if d.transport == nil || d.sequencer == nil {
		return sub, contracts.NewTransportError(contracts.TransportPrecondition, op, errors.New("dispatcher is not wired"))
	}
	if err := validateCall(call); err != nil {
		return sub, contracts.NewTransportError(contracts.TransportPrecondition, op, err)
	}

	number, err := d.sequencer.NextRequestNumber(call.NotaryID, call.NymID)
	if err != nil {
		return sub, contracts.NewTransportError(contracts.TransportPrecondition, op,
			contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, fmt.Errorf("request number: %w", err)))
	}
	sub.Request = buildRequest(call, number)

	ctx, span := d.tracer.Start(ctx, "otme.dispatch "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("otme.operation", op),
			attribute.String("otme.notary_id", sub.Request.NotaryID()),
			attribute.Int64("otme.request_num", number),
			attribute.String("otme.request_id", sub.Request.RequestID()),
		))
	defer span.End()

	if err := d.limiter.Wait(ctx, sub.Request.NotaryID()); err != nil {
		te := contracts.NewTransportError(contracts.TransportPrecondition, op, fmt.Errorf("rate limit: %w", err))
		d.fail(span, sub, te)
		return sub, te
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := d.now()
	raw, err := d.transport.Submit(ctx, sub.Request)
	sub.Elapsed = d.now().Sub(started)
	if err != nil {
		te := contracts.AsTransportError(op, err)
		d.metrics.ObserveDispatch(op, string(te.Kind), sub.Elapsed)
		d.fail(span, sub, te)
		return sub, te
	}

	sub.Reply = raw
	d.metrics.ObserveDispatch(op, "ok", sub.Elapsed)
	span.SetAttributes(attribute.Bool("otme.empty_reply", raw.IsEmpty()))
	d.logger.Debug("request submitted",
		"component", componentName,
		"operation", op,
		"correlation_id", sub.CorrelationID,
		"notary_id", sub.Request.NotaryID(),
		"nym_id", sub.Request.NymID(),
		"request_num", number,
		"empty_reply", raw.IsEmpty(),
		"elapsed", sub.Elapsed,
	)
	return sub, nil
}

func (d *Dispatcher) fail(span trace.Span, sub Submission, te *contracts.TransportError) {
	span.RecordError(te)
	span.SetStatus(codes.Error, string(te.Kind))
	span.SetAttributes(attribute.Bool("otme.maybe_delivered", te.MaybeDelivered()))
	d.logger.Warn("request failed",
		"component", componentName,
		"operation", te.Operation,
		"correlation_id", sub.CorrelationID,
		"notary_id", sub.Request.NotaryID(),
		"nym_id", sub.Request.NymID(),
		"kind", string(te.Kind),
		"maybe_delivered", te.MaybeDelivered(),
		"error", te.Error(),
	)
}

func validateCall(call Call) error {
	switch {
	case strings.TrimSpace(call.Operation) == "":
		return errors.New("operation is required")
	case strings.TrimSpace(call.NotaryID) == "":
		return errors.New("notary id is required")
	case strings.TrimSpace(call.NymID) == "":
		return errors.New("nym id is required")
	}
	return nil
}
