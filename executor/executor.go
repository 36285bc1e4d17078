package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mevexec/sandwichd/chain"
)

const (
	defaultScanInterval = time.Second * 5
	defaultMaxPipelines = 8
	defaultHeightPoll   = time.Second * 2
)

type Config struct {
	// ScanInterval is the cadence of the scan loop.
	ScanInterval time.Duration

	// MaxPipelines bounds concurrent build->simulate->submit pipelines.
	// Opportunities beyond the bound are dropped, never queued; the next
	// scan cycle produces fresh ones anyway.
	MaxPipelines int

	// RebuildOnStale re-runs the full cycle once against the next block when
	// an attempt goes stale and the opportunity still looks viable.
	RebuildOnStale bool
}

// Executor owns the scan loop and the per-opportunity pipelines. The scan
// loop never blocks on pipeline work; every Opportunity, Bundle and outcome
// is exclusively owned by its own pipeline. The nonce allocator inside the
// builder is the only shared mutable state.
type Executor struct {
	scanner   *Scanner
	builder   *Builder
	gate      *Gate
	submitter *Submitter
	chain     chain.Client
	estimator ProfitEstimator

	cfg Config
	log *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func New(scanner *Scanner, builder *Builder, gate *Gate, submitter *Submitter, c chain.Client, estimator ProfitEstimator, cfg Config, log *slog.Logger) *Executor {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.MaxPipelines <= 0 {
		cfg.MaxPipelines = defaultMaxPipelines
	}
	if log == nil {
		log = slog.Default()
	}

	return &Executor{
		scanner:   scanner,
		builder:   builder,
		gate:      gate,
		submitter: submitter,
		chain:     c,
		estimator: estimator,
		cfg:       cfg,
		log:       log,
		sem:       make(chan struct{}, cfg.MaxPipelines),
	}
}

// Run drives RunCycle on the configured cadence until the context is done,
// then waits for in-flight pipelines to drain.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	e.log.Info("Executor started", "scan_interval", e.cfg.ScanInterval, "max_pipelines", e.cfg.MaxPipelines)

	for {
		e.RunCycle(ctx)

		select {
		case <-ctx.Done():
			e.log.Info("Executor stopping, draining pipelines")
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one scan and spawns a pipeline per opportunity. This is
// the scanOnce entry point for hosting processes with their own scheduler.
func (e *Executor) RunCycle(ctx context.Context) {
	for _, opp := range e.scanner.Scan(ctx) {
		select {
		case e.sem <- struct{}{}:
		default:
			e.log.Warn("Pipeline pool full, dropping opportunity", "victim", opp.Victim.Hash)
			continue
		}

		e.wg.Add(1)
		go func(opp Opportunity) {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			e.runPipeline(ctx, opp, 0)
		}(opp)
	}
}

func (e *Executor) runPipeline(ctx context.Context, opp Opportunity, retargets int) {
	bundle, err := e.builder.Build(ctx, opp)
	if err != nil {
		e.reportBuildFailure(opp, err)
		return
	}

	// Proactive cutoff: once the chain passes the target block there is no
	// point simulating or submitting this bundle.
	simCtx, simCancel := context.WithCancel(ctx)
	defer simCancel()
	stopWatch := e.cancelWhenPassed(simCtx, bundle.TargetBlock, simCancel)

	att := e.submitter.Register(bundle, opp.Profit)

	outcome, gateErr := e.gate.Check(simCtx, bundle)
	if gateErr != nil {
		stopWatch()
		switch {
		case errors.Is(gateErr, context.Canceled):
			e.submitter.MarkStale(att)
			e.maybeRetarget(ctx, opp, retargets)
		case errors.Is(gateErr, ErrSimulationReverted):
			e.submitter.ApplySimulation(att, outcome)
			pipelineFailures.WithLabelValues("simulate").Inc()
		case errors.Is(gateErr, ErrBelowMinPayment):
			e.submitter.Discard(att, "proposer payment below minimum")
			pipelineFailures.WithLabelValues("simulate").Inc()
		default:
			e.submitter.Discard(att, "simulation unavailable")
			pipelineFailures.WithLabelValues("simulate").Inc()
			e.log.Warn("Simulation gate failed", "bundle", bundle.ID, "error", gateErr)
		}
		return
	}
	e.submitter.ApplySimulation(att, outcome)

	_, err = e.submitter.Submit(simCtx, att)
	stopWatch()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.submitter.MarkStale(att)
			e.maybeRetarget(ctx, opp, retargets)
			return
		}
		pipelineFailures.WithLabelValues("submit").Inc()
		e.log.Warn("Submission failed", "bundle", bundle.ID, "error", err)
		return
	}

	state, err := e.submitter.Track(ctx, att)
	if err != nil {
		e.log.Debug("Tracking interrupted", "bundle", bundle.ID, "state", state, "error", err)
		return
	}

	if state == StateStale {
		e.maybeRetarget(ctx, opp, retargets)
	}
}

// maybeRetarget runs one fresh build->simulate->submit cycle against the next
// block. The stale bundle itself is never resubmitted; nonces and fees are
// fetched anew by the builder.
func (e *Executor) maybeRetarget(ctx context.Context, opp Opportunity, retargets int) {
	if !e.cfg.RebuildOnStale || retargets >= 1 || ctx.Err() != nil {
		return
	}

	// a stale victim may have been mined or evicted in the meantime
	victim, err := e.chain.TransactionDetail(ctx, opp.Victim.Hash)
	if err != nil {
		e.log.Warn("Failed to get victim detail for retarget, skipping", "victim", opp.Victim.Hash, "error", err)
		return
	}
	if victim == nil {
		e.log.Debug("Victim no longer pending, abandoning retarget", "victim", opp.Victim.Hash)
		return
	}

	profit, viable := e.estimator.Estimate(ctx, opp.Victim)
	if !viable {
		e.log.Debug("Stale opportunity no longer viable", "victim", opp.Victim.Hash)
		return
	}

	height, err := e.chain.BlockNumber(ctx)
	if err != nil {
		e.log.Warn("Failed to get chain height for retarget", "victim", opp.Victim.Hash, "error", err)
		return
	}

	fresh := Opportunity{
		Kind:        opp.Kind,
		Victim:      opp.Victim,
		Profit:      profit,
		TargetBlock: height + 1,
	}
	e.log.Info("Retargeting stale opportunity", "victim", opp.Victim.Hash, "target_block", fresh.TargetBlock)
	e.runPipeline(ctx, fresh, retargets+1)
}

// cancelWhenPassed cancels the given context once the chain height passes
// target. The returned stop function halts the watcher, used after a
// successful submit so outcome tracking is not cancelled.
func (e *Executor) cancelWhenPassed(ctx context.Context, target uint64, cancel context.CancelFunc) (stop func()) {
	wctx, wcancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(defaultHeightPoll)
		defer ticker.Stop()

		for {
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
			}

			height, err := e.chain.BlockNumber(wctx)
			if err != nil {
				continue
			}
			if height > target {
				cancel()
				return
			}
		}
	}()

	return wcancel
}

func (e *Executor) reportBuildFailure(opp Opportunity, err error) {
	switch {
	case errors.Is(err, ErrNonceConflict):
		// concurrency invariant violation, never swallowed quietly
		e.log.Error("Nonce conflict during build", "victim", opp.Victim.Hash, "error", err)
		pipelineFailures.WithLabelValues("nonce").Inc()
	case errors.Is(err, ErrSigning):
		e.log.Error("Signing failed, pipeline aborted", "victim", opp.Victim.Hash, "error", err)
		pipelineFailures.WithLabelValues("sign").Inc()
	default:
		e.log.Warn("Bundle build failed", "victim", opp.Victim.Hash, "error", err)
		pipelineFailures.WithLabelValues("build").Inc()
	}
}

// Totals exposes accrued submission statistics.
func (e *Executor) Totals() Totals {
	return e.submitter.Totals()
}
