package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"otme/go-client/internal/composition/binding"
	"otme/go-client/internal/config"
	"otme/go-client/internal/domains/orchestrator"
	"otme/go-client/internal/domains/reply"
	"otme/go-client/internal/notary"
	"otme/go-client/internal/platform/metrics"
	"otme/go-client/internal/platform/privacylog"
	"otme/go-client/internal/platform/ratelimiter"
	"otme/go-client/internal/session"
	"otme/go-client/internal/wallet"
	"otme/go-client/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitError   = 2

	limiterIdleTTL = 10 * time.Minute
)

type runner struct {
	stdout io.Writer
	stderr io.Writer
	exit   int
}

// record keeps the worst exit code seen in this run.
func (r *runner) record(o models.Outcome) {
	if code := exitCode(o); code > r.exit {
		r.exit = code
	}
}

// exitCode maps the legacy -1/0/1 code onto 2/1/0.
func exitCode(o models.Outcome) int {
	return 1 - o.LegacyCode()
}

type env struct {
	cfg     config.Config
	logger  *slog.Logger
	binding *binding.Binding
	session *session.Session
}

func (r *runner) loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if v := strings.TrimSpace(c.String("data-dir")); v != "" {
		cfg.Client.DataDir = v
	}
	if v := strings.TrimSpace(c.String("log-level")); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// withSession opens a session for the duration of fn. Metrics are served
// only while fn runs.
func (r *runner) withSession(c *cli.Context, fn func(ctx context.Context, e *env) error) error {
	cfg, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	logger := privacylog.NewLogger(r.stderr, cfg.Log.LogLevel(), cfg.Log.Format)

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collectors, err = metrics.New(reg)
		if err != nil {
			return err
		}
		if addr := strings.TrimSpace(c.String("metrics-addr")); addr != "" {
			stop, err := serveMetrics(addr, reg, logger)
			if err != nil {
				return err
			}
			defer stop()
		}
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	b := binding.FromConfig(cfg, notary.WithTimeout(cfg.Dispatch.Timeout))
	s, err := session.Open(ctx, b, session.Options{
		Policy: orchestrator.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			MaxJitter:   cfg.Retry.MaxJitter,
		},
		Timeout: cfg.Dispatch.Timeout,
		Limiter: ratelimiter.New(cfg.Dispatch.RateLimitRPS, cfg.Dispatch.RateLimitBurst, limiterIdleTTL),
		Logger:  logger,
		Metrics: collectors,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.Background()); cerr != nil {
			logger.Warn("session close failed", "component", "cli", "error", cerr.Error())
		}
	}()
	return fn(ctx, &env{cfg: cfg, logger: logger, binding: b, session: s})
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "component", "cli", "error", err.Error())
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

type resultView struct {
	Workflow   string         `json:"workflow"`
	Operation  string         `json:"operation"`
	Outcome    models.Outcome `json:"outcome"`
	FailedTier models.Tier    `json:"failed_tier,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Attempts   int            `json:"attempts"`
	Error      string         `json:"error,omitempty"`
}

func viewOf(res models.Result) resultView {
	return resultView{
		Workflow:   res.Workflow,
		Operation:  res.Operation,
		Outcome:    res.Outcome,
		FailedTier: res.FailedTier,
		RequestID:  res.RequestID,
		Attempts:   res.Attempts,
		Error:      res.ErrorText(),
	}
}

func (r *runner) printJSON(v any) error {
	enc := json.NewEncoder(r.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *runner) report(results ...models.Result) error {
	views := make([]resultView, 0, len(results))
	for _, res := range results {
		r.record(res.Outcome)
		views = append(views, viewOf(res))
	}
	if len(views) == 1 {
		return r.printJSON(views[0])
	}
	return r.printJSON(views)
}

func (r *runner) cmdServers(c *cli.Context) error {
	return r.withSession(c, func(_ context.Context, e *env) error {
		count, err := e.session.ServerContractCount()
		if err != nil {
			return err
		}
		return r.printJSON(struct {
			Count   int                     `json:"count"`
			Servers []wallet.ServerContract `json:"servers"`
		}{Count: count, Servers: e.binding.Wallet().Servers()})
	})
}

func (r *runner) cmdAddServer(c *cli.Context) error {
	return r.withSession(c, func(_ context.Context, e *env) error {
		sc := wallet.ServerContract{
			NotaryID: c.String("notary"),
			Name:     c.String("name"),
			Endpoint: c.String("endpoint"),
		}
		if err := e.binding.Wallet().AddServer(sc); err != nil {
			return err
		}
		return r.printJSON(sc)
	})
}

func (r *runner) cmdCheckNym(c *cli.Context) error {
	return r.withSession(c, func(ctx context.Context, e *env) error {
		return r.report(e.session.CheckIdentity(ctx, c.String("notary"), c.String("nym"), c.String("target")))
	})
}

func (r *runner) cmdGetMint(c *cli.Context) error {
	return r.withSession(c, func(ctx context.Context, e *env) error {
		return r.report(e.session.LoadOrRetrieveMint(ctx, c.String("notary"), c.String("nym"), c.String("asset")))
	})
}

func (r *runner) cmdWithdraw(c *cli.Context) error {
	return r.withSession(c, func(ctx context.Context, e *env) error {
		return r.report(e.session.WithdrawCash(ctx,
			c.String("notary"), c.String("nym"), c.String("account"), c.String("asset"), c.Int64("amount")))
	})
}

// transactionOps lists the operations transact accepts.
func transactionOps() []string {
	shapes := reply.DefaultShapes()
	var out []string
	for _, op := range shapes.Operations() {
		if shape, ok := shapes.Lookup(op); ok && shape.Transactional() {
			out = append(out, op)
		}
	}
	return out
}

func checkTransactionOp(op string) error {
	op = strings.TrimSpace(op)
	for _, known := range transactionOps() {
		if op == known {
			return nil
		}
	}
	return fmt.Errorf("operation %q is not a transaction; one of: %s", op, strings.Join(transactionOps(), ", "))
}

func (r *runner) cmdTransact(c *cli.Context) error {
	if err := checkTransactionOp(c.String("op")); err != nil {
		return err
	}
	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}
	return r.withSession(c, func(ctx context.Context, e *env) error {
		return r.report(e.session.PerformTransaction(ctx, orchestrator.TransactionRequest{
			NotaryID:  c.String("notary"),
			NymID:     c.String("nym"),
			AccountID: c.String("account"),
			AssetID:   c.String("asset"),
			Operation: strings.TrimSpace(c.String("op")),
			Params:    params,
		}))
	})
}

func (r *runner) cmdResync(c *cli.Context) error {
	return r.withSession(c, func(ctx context.Context, e *env) error {
		return r.report(e.session.Resynchronize(ctx, c.String("notary"), c.String("nym")))
	})
}

// cmdDemo checks a nym, loads the mint and withdraws, stopping at the
// first step that does not succeed.
func (r *runner) cmdDemo(c *cli.Context) error {
	notaryID, nymID := c.String("notary"), c.String("nym")
	target := c.String("target")
	if strings.TrimSpace(target) == "" {
		target = nymID
	}
	return r.withSession(c, func(ctx context.Context, e *env) error {
		results := []models.Result{e.session.CheckIdentity(ctx, notaryID, nymID, target)}
		if results[0].Succeeded() {
			results = append(results, e.session.LoadOrRetrieveMint(ctx, notaryID, nymID, c.String("asset")))
		}
		if len(results) == 2 && results[1].Succeeded() {
			results = append(results, e.session.WithdrawCash(ctx,
				notaryID, nymID, c.String("account"), c.String("asset"), c.Int64("amount")))
		}
		return r.report(results...)
	})
}

func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("param %q: want key=value", kv)
		}
		params[k] = v
	}
	return params, nil
}
