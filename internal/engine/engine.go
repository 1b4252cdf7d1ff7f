// Package engine contains the dispatch orchestrator: it partitions
// recipients into units of work, renders content, drives delivery through a
// rotating set of provider connections, and emits one ledger record per
// recipient.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/ledger"
	"github.com/dragonsend/dispatch-engine/internal/provider"
	"github.com/dragonsend/dispatch-engine/internal/rotation"
	"github.com/dragonsend/dispatch-engine/internal/strategy"
)

// Connector opens provider connections. Satisfied by *provider.Manager;
// faked in tests.
type Connector interface {
	Connect(ctx context.Context, cfg domain.ProviderConfig) (provider.Conn, error)
}

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the engine constructor signature clean.
type Hooks struct {
	OnSent   func(kind domain.ProviderKind, latency time.Duration)
	OnFailed func(kind domain.ProviderKind, fail domain.FailKind)
}

// Request is everything one dispatch call needs. The engine holds no state
// between calls: recipients, template, providers, and policy arrive
// explicitly so there is no ambient mutable configuration.
type Request struct {
	Recipients []domain.Recipient
	Template   domain.MessageTemplate
	Providers  []domain.ProviderConfig
	Policy     domain.DispatchPolicy

	// TrackingURL is the public base URL of the tracking server; empty
	// disables pixel URLs (markers degrade to HTML comments).
	TrackingURL string

	// OnProgress is called with the completed fraction (0..1] after every
	// unit of work. Optional.
	OnProgress func(fraction float64)
}

// Engine executes dispatch runs sequentially: one connection per provider at
// a time, units processed in enumeration order, no concurrent sends.
type Engine struct {
	connector Connector
	ledger    ledger.Ledger
	logger    *zap.Logger
	hooks     Hooks
}

func New(connector Connector, led ledger.Ledger, logger *zap.Logger, hooks Hooks) *Engine {
	if hooks.OnSent == nil {
		hooks.OnSent = func(domain.ProviderKind, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.ProviderKind, domain.FailKind) {}
	}
	return &Engine{connector: connector, ledger: led, logger: logger, hooks: hooks}
}

// Dispatch drives one full run and returns the complete result list, one
// record per unique recipient, in enumeration order. Failures never escape
// as errors: every failure mode is converted into result records so the
// caller always gets an exact success/failure accounting.
func (e *Engine) Dispatch(ctx context.Context, req Request) []domain.DeliveryResult {
	runID := uuid.New().String()[:8]
	log := e.logger.With(zap.String("run_id", runID))

	policy := req.Policy.WithDefaults()
	recipients := domain.Dedupe(req.Recipients)

	if len(recipients) == 0 {
		log.Warn("dispatch called with no usable recipients")
		return nil
	}
	if err := e.validate(req, policy); err != nil {
		log.Error("dispatch not configured", zap.Error(err))
		return e.failAll(ctx, recipients, req, err)
	}

	kind := req.Providers[0].Kind
	strat := strategy.ForRun(kind, req.Template, policy, req.TrackingURL)
	ctrl := rotation.NewController(len(req.Providers), policy)
	units := strat.Partition(recipients)

	log.Info("dispatch starting",
		zap.Int("recipients", len(recipients)),
		zap.Int("units", len(units)),
		zap.Int("providers", len(req.Providers)),
		zap.String("mode", string(policy.Mode)),
		zap.String("provider_kind", string(kind)),
	)

	// All-or-nothing at the gate: an unreachable or unauthenticated first
	// provider fails every recipient with one shared message before any
	// send is attempted.
	conn, err := e.connector.Connect(ctx, req.Providers[0])
	if err != nil {
		log.Error("initial connect failed", zap.Error(err))
		return e.failAll(ctx, recipients, req, err)
	}
	// The connection is replaced on rotation and reconnect; always close
	// whatever is current on every exit path.
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	var results []domain.DeliveryResult
	total := len(units)

	for i, unit := range units {
		if ctx.Err() != nil {
			log.Warn("dispatch cancelled", zap.Int("units_done", i))
			results = append(results, e.failPending(ctx, units[i:], req,
				domain.Errorf(domain.FailTransient, "dispatch cancelled: %v", ctx.Err()))...)
			return results
		}

		rotate, err := ctrl.BeforeUnit(ctx)
		if err != nil {
			results = append(results, e.failPending(ctx, units[i:], req,
				domain.Errorf(domain.FailTransient, "dispatch cancelled: %v", err))...)
			return results
		}
		if rotate {
			_ = conn.Close()
			conn = nil
			next := req.Providers[ctrl.ProviderIndex()]
			log.Info("rotating provider", zap.String("provider", next.Name))
			conn, err = e.connector.Connect(ctx, next)
			if err != nil {
				log.Error("rotation connect failed", zap.Error(err))
				results = append(results, e.failPending(ctx, units[i:], req, err)...)
				return results
			}
		}

		prov := req.Providers[ctrl.ProviderIndex()]
		start := time.Now()
		unitResults := strat.SendUnit(ctx, conn, prov, unit)
		elapsed := time.Since(start)

		fatal := e.record(ctx, log, kind, unitResults, elapsed)
		results = append(results, unitResults...)

		if req.OnProgress != nil {
			req.OnProgress(float64(i+1) / float64(total))
		}

		if fatal != nil {
			log.Error("run-fatal failure, aborting remaining units", zap.Error(fatal))
			results = append(results, e.failPending(ctx, units[i+1:], req, fatal)...)
			return results
		}

		if err := ctrl.AfterUnit(ctx); err != nil {
			log.Warn("dispatch cancelled during pacing delay", zap.Int("units_done", i+1))
			results = append(results, e.failPending(ctx, units[i+1:], req,
				domain.Errorf(domain.FailTransient, "dispatch cancelled: %v", err))...)
			return results
		}
	}

	s := domain.Summarize(results)
	log.Info("dispatch finished",
		zap.Int("sent", s.Sent),
		zap.Int("failed", s.Failed),
	)
	return results
}

func (e *Engine) validate(req Request, policy domain.DispatchPolicy) error {
	if len(req.Providers) == 0 {
		return domain.NewError(domain.FailConfig, domain.ErrNoProviders)
	}
	if err := req.Template.Validate(); err != nil {
		return domain.NewError(domain.FailConfig, err)
	}
	if err := policy.Validate(); err != nil {
		return domain.NewError(domain.FailConfig, err)
	}
	kind := req.Providers[0].Kind
	for _, p := range req.Providers {
		if err := p.Validate(); err != nil {
			return domain.NewError(domain.FailConfig, err)
		}
		if p.Kind != kind {
			return domain.Errorf(domain.FailConfig,
				"rotation list mixes provider kinds %s and %s", kind, p.Kind)
		}
	}
	return nil
}

// record appends every result of one unit to the ledger and fires the metric
// hooks. It returns a non-nil error when a result carries a run-fatal kind.
func (e *Engine) record(ctx context.Context, log *zap.Logger, kind domain.ProviderKind, unitResults []domain.DeliveryResult, elapsed time.Duration) error {
	var fatal error
	for _, r := range unitResults {
		if err := e.ledger.AppendResult(ctx, r); err != nil {
			// A broken ledger must not lose the run itself; the result
			// list is still returned to the caller.
			log.Error("ledger append failed", zap.String("recipient", r.Recipient), zap.Error(err))
		}
		if r.Success {
			e.hooks.OnSent(kind, elapsed)
			continue
		}
		e.hooks.OnFailed(kind, r.Kind)
		if r.Kind == domain.FailAuth || r.Kind == domain.FailConfig {
			fatal = domain.Errorf(r.Kind, "%s", r.Detail)
		}
	}
	return fatal
}

// failAll produces one uniform failure record per recipient and appends each
// to the ledger, preserving the error's failure kind.
func (e *Engine) failAll(ctx context.Context, recipients []domain.Recipient, req Request, cause error) []domain.DeliveryResult {
	results := make([]domain.DeliveryResult, len(recipients))
	now := time.Now()
	for i, r := range recipients {
		results[i] = domain.DeliveryResult{
			Recipient: r.Address,
			Success:   false,
			Detail:    cause.Error(),
			Kind:      domain.KindOf(cause),
			Timestamp: now,
		}
		if err := e.ledger.AppendResult(ctx, results[i]); err != nil {
			e.logger.Error("ledger append failed", zap.Error(err))
		}
		e.hooks.OnFailed(providerKind(req), domain.KindOf(cause))
	}
	if req.OnProgress != nil {
		req.OnProgress(1.0)
	}
	return results
}

// failPending flattens the not-yet-attempted units into uniform failure
// records sharing the aborting error's message and kind.
func (e *Engine) failPending(ctx context.Context, pending [][]domain.Recipient, req Request, cause error) []domain.DeliveryResult {
	var flat []domain.Recipient
	for _, unit := range pending {
		flat = append(flat, unit...)
	}
	return e.failAll(ctx, flat, req, cause)
}

func providerKind(req Request) domain.ProviderKind {
	if len(req.Providers) > 0 {
		return req.Providers[0].Kind
	}
	return ""
}
