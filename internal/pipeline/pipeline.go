// Package pipeline sequences the ingest and transform phases into runs.
//
// Only one run is active at a time. Runs are started synchronously by the
// CLI, asynchronously by the HTTP server, or periodically by the Scheduler;
// the latest result of any of them is kept for the status endpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/ingest"
	"github.com/JonMunkholm/nipa/internal/logging"
	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("run already in progress")

// ErrIngestUnavailable is returned when the ingest phase is requested
// without a configured BEA client.
var ErrIngestUnavailable = errors.New("ingest unavailable: BEA_API_KEY is not set")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Phases selects which phases a run executes.
type Phases struct {
	Ingest    bool
	Transform bool
}

// AllPhases runs ingest then transform.
var AllPhases = Phases{Ingest: true, Transform: true}

// Ingester downloads raw data. Satisfied by *ingest.Runner.
type Ingester interface {
	Run(ctx context.Context) (*ingest.Report, error)
}

// Transformer publishes datasets from raw data. Satisfied by *core.Transformer.
type Transformer interface {
	Run(ctx context.Context) (*core.RunReport, error)
}

// Result describes one pipeline run.
type Result struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"`
	Phases     []string        `json:"phases"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Ingest     *ingest.Report  `json:"ingest,omitempty"`
	Transform  *core.RunReport `json:"transform,omitempty"`
}

// Pipeline runs phases one run at a time.
type Pipeline struct {
	ingester    Ingester
	transformer Transformer

	mu      sync.Mutex
	running bool
	latest  *Result
	wg      sync.WaitGroup
}

// New creates a Pipeline. ingester may be nil, in which case runs that
// include the ingest phase fail with ErrIngestUnavailable.
func New(ingester Ingester, transformer Transformer) *Pipeline {
	return &Pipeline{ingester: ingester, transformer: transformer}
}

// RunOnce executes a run and waits for it to finish.
func (p *Pipeline) RunOnce(ctx context.Context, phases Phases) (*Result, error) {
	result, err := p.begin(phases)
	if err != nil {
		return nil, err
	}
	err = p.execute(ctx, result, phases)
	return p.snapshot(result), err
}

// Start begins a run in the background and returns its ID. ctx bounds the
// run and must outlive the caller's request.
func (p *Pipeline) Start(ctx context.Context, phases Phases) (string, error) {
	result, err := p.begin(phases)
	if err != nil {
		return "", err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.execute(ctx, result, phases); err != nil {
			logging.FromContext(logging.WithRunID(ctx, result.RunID)).Error("pipeline run failed", "error", err)
		}
	}()
	return result.RunID, nil
}

// Wait blocks until background runs started with Start have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Running reports whether a run is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Latest returns a copy of the most recent run's result, or nil before the first run.
func (p *Pipeline) Latest() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil
	}
	r := *p.latest
	return &r
}

func (p *Pipeline) begin(phases Phases) (*Result, error) {
	if !phases.Ingest && !phases.Transform {
		return nil, errors.New("no phases selected")
	}
	if phases.Ingest && p.ingester == nil {
		return nil, ErrIngestUnavailable
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrRunInProgress
	}
	p.running = true

	result := &Result{
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		Phases:    phases.names(),
		StartedAt: time.Now().UTC(),
	}
	p.latest = result
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, result *Result, phases Phases) error {
	ctx = logging.WithRunID(ctx, result.RunID)
	logger := logging.FromContext(ctx)
	logger.Info("pipeline run started", "phases", result.Phases)

	err := p.runPhases(ctx, result, phases)

	p.mu.Lock()
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.ErrorCode = core.MapError(err).Code
	} else {
		result.Status = StatusSucceeded
	}
	p.running = false
	p.mu.Unlock()

	logger.Info("pipeline run finished",
		"status", result.Status,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds())
	return err
}

func (p *Pipeline) runPhases(ctx context.Context, result *Result, phases Phases) error {
	if phases.Ingest {
		report, err := p.ingester.Run(ctx)
		p.mu.Lock()
		result.Ingest = report
		p.mu.Unlock()
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	if phases.Transform {
		report, err := p.transformer.Run(ctx)
		p.mu.Lock()
		result.Transform = report
		p.mu.Unlock()
		if err != nil {
			return fmt.Errorf("transform: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) snapshot(result *Result) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := *result
	return &r
}

func (ph Phases) names() []string {
	names := make([]string, 0, 2)
	if ph.Ingest {
		names = append(names, "ingest")
	}
	if ph.Transform {
		names = append(names, "transform")
	}
	return names
}
