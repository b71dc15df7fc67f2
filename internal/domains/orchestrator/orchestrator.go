// Package orchestrator composes dispatches into workflows and owns every
// decision to resubmit, resynchronize or give up.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/domains/dispatch"
	"otme/go-client/internal/domains/reply"
	"otme/go-client/internal/platform/metrics"
	"otme/go-client/pkg/models"
)

const componentName = "orchestrator"

const (
	WorkflowCheckIdentity      = "check_identity"
	WorkflowLoadMint           = "load_or_retrieve_mint"
	WorkflowPerformTransaction = "perform_transaction"
	WorkflowWithdrawCash       = "withdraw_cash"
	WorkflowResynchronize      = "resynchronize"
)

type Orchestrator struct {
	dispatcher  *dispatch.Dispatcher
	interpreter *reply.Interpreter
	store       contracts.LocalStore
	policy      Policy
	locks       *lockTable
	doubt       *doubtSet
	logger      *slog.Logger
	metrics     *metrics.Collectors
	sleep       func(context.Context, time.Duration) error
}

type Option func(*Orchestrator)

func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p.normalized() }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

func New(d *dispatch.Dispatcher, in *reply.Interpreter, store contracts.LocalStore, opts ...Option) *Orchestrator {
	if in == nil {
		in = reply.NewInterpreter(nil)
	}
	o := &Orchestrator{
		dispatcher:  d,
		interpreter: in,
		store:       store,
		policy:      DefaultPolicy(),
		locks:       newLockTable(),
		doubt:       newDoubtSet(),
		logger:      slog.Default(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InDoubt reports whether the identity's last mutating request has an
// unknown result. The next transaction on it resynchronizes first.
func (o *Orchestrator) InDoubt(notaryID, nymID string) bool {
	return o.doubt.has(identityKey(notaryID, nymID))
}

type step struct {
	workflow string
	call     dispatch.Call
	shape    reply.Shape
	// resync allows an out_of_sync rejection to trigger a resynchronization.
	resync bool
}

// run submits one step until it gets a reply or the retry policy says stop.
// Caller holds the identity lock.
func (o *Orchestrator) run(ctx context.Context, s step) models.Result {
	op := s.shape.Operation()
	s.call.Operation = op
	key := identityKey(s.call.NotaryID, s.call.NymID)
	res := models.Result{Workflow: s.workflow, Operation: op}

	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := o.policy.Backoff(key+"|"+op, attempt-1)
			if err := o.sleep(ctx, delay); err != nil {
				res.Err = contracts.AsTransportError(op, err)
				return res
			}
		}
		res.Attempts = attempt
		sub, err := o.dispatcher.DispatchRequest(ctx, s.call)
		res.RequestID = sub.Request.RequestID()
		if err == nil {
			return o.interpret(res, s, sub.Reply)
		}

		te := contracts.AsTransportError(op, err)
		res.Outcome, res.FailedTier, res.Err = models.OutcomeError, models.TierTransport, te
		if !o.shouldRetry(ctx, s, te, attempt == o.policy.MaxAttempts) {
			return res
		}
		if attempt < o.policy.MaxAttempts {
			o.metrics.ObserveRetry(op, string(te.Kind))
			o.logInfo(op, s.call.CorrelationID, "retrying request",
				"notary_id", s.call.NotaryID, "nym_id", s.call.NymID, "attempt", attempt, "kind", string(te.Kind))
		}
	}
	return res
}

// shouldRetry applies the retry policy. On the last attempt it still records
// doubt but skips the resync round trip, since nothing would follow it.
func (o *Orchestrator) shouldRetry(ctx context.Context, s step, te *contracts.TransportError, last bool) bool {
	switch {
	case te.Kind == contracts.TransportPrecondition:
		return false
	case s.shape.Transactional() && te.MaybeDelivered():
		o.doubt.mark(identityKey(s.call.NotaryID, s.call.NymID))
		o.logWarn(s.shape.Operation(), s.call.CorrelationID, "transaction outcome unknown; not resubmitting",
			"notary_id", s.call.NotaryID, "nym_id", s.call.NymID, "kind", string(te.Kind))
		return false
	case last:
		return false
	case te.Kind == contracts.TransportOutOfSync && s.resync:
		return o.resync(ctx, s.call.NotaryID, s.call.NymID, s.call.CorrelationID).Succeeded()
	default:
		return true
	}
}

func (o *Orchestrator) interpret(res models.Result, s step, raw models.RawReply) models.Result {
	res.Raw = raw
	parsed, err := o.interpreter.ParseFor(s.call.NotaryID, s.call.NymID, s.call.AccountID, s.shape.Operation(), raw)
	if err != nil {
		res.Outcome, res.FailedTier, res.Err = models.OutcomeError, models.TierMessage, err
		if s.shape.Transactional() {
			// No readable reply is not proof that nothing happened.
			o.doubt.mark(identityKey(s.call.NotaryID, s.call.NymID))
		}
		return res
	}
	res.Parsed = &parsed
	v := reply.VerdictOf(parsed, s.shape.Transactional())
	res.Outcome, res.FailedTier, res.Err = v.Outcome, v.Tier, v.Cause
	return res
}

// resync asks the server for its request number and stores it. Caller
// holds the identity lock.
func (o *Orchestrator) resync(ctx context.Context, notaryID, nymID, correlationID string) models.Result {
	shape, ok := o.interpreter.Shapes().Lookup(reply.OpGetRequestNumber)
	if !ok {
		return localError(WorkflowResynchronize, reply.OpGetRequestNumber, contracts.ErrUnknownOperation)
	}
	res := o.run(ctx, step{
		workflow: WorkflowResynchronize,
		call:     dispatch.Call{NotaryID: notaryID, NymID: nymID, CorrelationID: correlationID},
		shape:    shape,
	})
	if !res.Succeeded() {
		return res
	}
	next, err := strconv.ParseInt(strings.TrimSpace(res.Parsed.Payload), 10, 64)
	if err != nil || next < 1 {
		res.Outcome, res.FailedTier = models.OutcomeError, models.TierMessage
		res.Err = contracts.NewParseError("invalid_request_number", fmt.Errorf("payload %q", res.Parsed.Payload))
		return res
	}
	if err := o.store.SetRequestNumber(notaryID, nymID, next); err != nil {
		res.Outcome, res.FailedTier = models.OutcomeError, models.TierNone
		res.Err = contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
		return res
	}
	o.doubt.clear(identityKey(notaryID, nymID))
	o.metrics.ObserveResync()
	o.logInfo(reply.OpGetRequestNumber, correlationID, "request number resynchronized",
		"notary_id", notaryID, "nym_id", nymID, "request_num", next)
	return res
}

func localError(workflow, operation string, err error) models.Result {
	var te *contracts.TransportError
	if !errors.As(err, &te) && !errors.Is(err, contracts.ErrUnknownOperation) {
		err = contracts.NewTransportError(contracts.TransportPrecondition, operation, err)
	}
	return models.Result{
		Workflow:   workflow,
		Operation:  operation,
		Outcome:    models.OutcomeError,
		FailedTier: models.TierTransport,
		Err:        err,
	}
}

func (o *Orchestrator) finish(res models.Result, correlationID, notaryID, nymID string) models.Result {
	o.metrics.ObserveWorkflow(res.Workflow, res.Outcome.String(), string(res.FailedTier))
	attrs := []any{
		"workflow", res.Workflow,
		"notary_id", notaryID,
		"nym_id", nymID,
		"outcome", res.Outcome.String(),
		"attempts", res.Attempts,
	}
	if res.Outcome == models.OutcomeSuccess {
		o.logInfo(res.Operation, correlationID, "workflow finished", attrs...)
		return res
	}
	attrs = append(attrs, "failed_tier", string(res.FailedTier))
	if res.Err != nil {
		attrs = append(attrs, "category", contracts.ErrorCategory(res.Err), "error", res.Err.Error())
	}
	o.logWarn(res.Operation, correlationID, "workflow did not succeed", attrs...)
	return res
}

func (o *Orchestrator) logInfo(operation, correlationID, message string, attrs ...any) {
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
		"correlation_id", strings.TrimSpace(correlationID),
	}
	o.logger.Info(message, append(base, attrs...)...)
}

func (o *Orchestrator) logWarn(operation, correlationID, message string, attrs ...any) {
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
		"correlation_id", strings.TrimSpace(correlationID),
	}
	o.logger.Warn(message, append(base, attrs...)...)
}
