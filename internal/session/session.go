// Package session brackets the binding's lifetime and exposes the
// workflows and reply checks to applications.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/domains/dispatch"
	"otme/go-client/internal/domains/orchestrator"
	"otme/go-client/internal/domains/reply"
	"otme/go-client/internal/platform/metrics"
	"otme/go-client/internal/platform/ratelimiter"
	"otme/go-client/pkg/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const componentName = "session"

var ErrSessionClosed = errors.New("session is closed")

type Options struct {
	// Policy falls back to orchestrator.DefaultPolicy when MaxAttempts is 0.
	Policy  orchestrator.Policy
	Timeout time.Duration
	Limiter *ratelimiter.MapLimiter
	Shapes  *reply.Shapes
	Logger  *slog.Logger
	Metrics *metrics.Collectors
	Tracer  trace.Tracer
	// Sleep replaces the retry sleeper; tests only.
	Sleep func(context.Context, time.Duration) error
}

// Session owns one initialized binding. Close waits for running workflows
// and shuts the binding down exactly once.
type Session struct {
	id          string
	binding     contracts.Binding
	store       contracts.LocalStore
	interpreter *reply.Interpreter
	orch        *orchestrator.Orchestrator
	logger      *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open initializes b and loads its local store. If either step fails the
// binding is shut down again and no session is returned.
func Open(ctx context.Context, b contracts.Binding, opts Options) (*Session, error) {
	if b == nil {
		return nil, errors.New("session: binding is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()

	if err := b.Initialize(ctx); err != nil {
		shutdownQuietly(b, logger, id)
		return nil, fmt.Errorf("initialize binding: %w", err)
	}
	store, err := b.LoadLocalStore(ctx)
	if err != nil {
		shutdownQuietly(b, logger, id)
		return nil, fmt.Errorf("load local store: %w", err)
	}
	if store == nil {
		shutdownQuietly(b, logger, id)
		return nil, errors.New("load local store: binding returned no store")
	}

	servers, err := b.CountLocalServerContracts()
	switch {
	case err != nil:
		logger.Warn("server contract count unavailable", "component", componentName, "session_id", id, "error", err.Error())
	case servers == 0:
		logger.Warn("wallet has no server contracts", "component", componentName, "session_id", id)
	default:
		logger.Info("session opened", "component", componentName, "session_id", id, "server_contracts", servers)
	}

	interpreter := reply.NewInterpreter(opts.Shapes)
	d := dispatch.New(b, store,
		dispatch.WithLimiter(opts.Limiter),
		dispatch.WithTimeout(opts.Timeout),
		dispatch.WithTracer(opts.Tracer),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(opts.Metrics),
	)
	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(opts.Metrics),
		orchestrator.WithSleep(opts.Sleep),
	}
	if opts.Policy.MaxAttempts > 0 {
		orchOpts = append(orchOpts, orchestrator.WithPolicy(opts.Policy))
	}

	return &Session{
		id:          id,
		binding:     b,
		store:       store,
		interpreter: interpreter,
		orch:        orchestrator.New(d, interpreter, store, orchOpts...),
		logger:      logger,
	}, nil
}

func shutdownQuietly(b contracts.Binding, logger *slog.Logger, id string) {
	if err := b.Shutdown(context.Background()); err != nil {
		logger.Warn("binding shutdown failed", "component", componentName, "session_id", id, "error", err.Error())
	}
}

func (s *Session) ID() string {
	return s.id
}

// Close shuts the binding down. Later calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.binding.Shutdown(ctx)
		s.logger.Info("session closed", "component", componentName, "session_id", s.id)
	})
	return s.closeErr
}

// enter holds the session open for the duration of one call.
func (s *Session) enter() (func(), bool) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false
	}
	return s.mu.RUnlock, true
}

func closedResult(workflow, operation string) models.Result {
	return models.Result{
		Workflow:   workflow,
		Operation:  operation,
		Outcome:    models.OutcomeError,
		FailedTier: models.TierTransport,
		Err:        contracts.NewTransportError(contracts.TransportPrecondition, operation, ErrSessionClosed),
	}
}

// ServerContractCount reports how many server contracts the wallet holds.
func (s *Session) ServerContractCount() (int, error) {
	leave, ok := s.enter()
	if !ok {
		return 0, ErrSessionClosed
	}
	defer leave()
	return s.binding.CountLocalServerContracts()
}

// InDoubt reports whether the identity needs a resynchronization before
// its next transaction.
func (s *Session) InDoubt(notaryID, nymID string) bool {
	return s.orch.InDoubt(notaryID, nymID)
}

func (s *Session) CheckIdentity(ctx context.Context, notaryID, nymID, targetNymID string) models.Result {
	leave, ok := s.enter()
	if !ok {
		return closedResult(orchestrator.WorkflowCheckIdentity, reply.OpCheckUser)
	}
	defer leave()
	return s.orch.CheckIdentity(ctx, notaryID, nymID, targetNymID)
}

func (s *Session) LoadOrRetrieveMint(ctx context.Context, notaryID, nymID, assetID string) models.Result {
	leave, ok := s.enter()
	if !ok {
		return closedResult(orchestrator.WorkflowLoadMint, reply.OpGetMint)
	}
	defer leave()
	return s.orch.LoadOrRetrieveMint(ctx, notaryID, nymID, assetID)
}

func (s *Session) PerformTransaction(ctx context.Context, req orchestrator.TransactionRequest) models.Result {
	leave, ok := s.enter()
	if !ok {
		return closedResult(orchestrator.WorkflowPerformTransaction, req.Operation)
	}
	defer leave()
	return s.orch.PerformTransaction(ctx, req)
}

func (s *Session) WithdrawCash(ctx context.Context, notaryID, nymID, accountID, assetID string, amount int64) models.Result {
	leave, ok := s.enter()
	if !ok {
		return closedResult(orchestrator.WorkflowWithdrawCash, reply.OpWithdrawCash)
	}
	defer leave()
	return s.orch.WithdrawCash(ctx, notaryID, nymID, accountID, assetID, amount)
}

func (s *Session) Resynchronize(ctx context.Context, notaryID, nymID string) models.Result {
	leave, ok := s.enter()
	if !ok {
		return closedResult(orchestrator.WorkflowResynchronize, reply.OpGetRequestNumber)
	}
	defer leave()
	return s.orch.Resynchronize(ctx, notaryID, nymID)
}

// VerifyMessageSuccess judges only the message tier of raw.
func (s *Session) VerifyMessageSuccess(raw models.RawReply) models.Outcome {
	leave, ok := s.enter()
	if !ok {
		return models.OutcomeError
	}
	defer leave()
	return s.interpreter.VerifyMessageSuccess(raw)
}

// InterpretTransactionReply judges every tier of a transaction reply.
func (s *Session) InterpretTransactionReply(notaryID, nymID, accountID, operation string, raw models.RawReply) models.Outcome {
	leave, ok := s.enter()
	if !ok {
		return models.OutcomeError
	}
	defer leave()
	return s.interpreter.InterpretTransactionReply(notaryID, nymID, accountID, operation, raw)
}
