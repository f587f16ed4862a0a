// Package orchestrator runs independent refinement jobs concurrently.
// Jobs share no state; each owns its oracles' results and its trace.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/valpere/redraft/internal/refiner"
)

type OrchestratorConfig struct {
	// Timeout bounds each job. Zero means no per-job limit.
	Timeout time.Duration
	// MaxParallel caps jobs in flight. Zero means GOMAXPROCS.
	MaxParallel int
	// OnDone, if set, is called once per finished job. Calls are
	// serialized, so it may write to non-thread-safe sinks.
	OnDone func(JobResult)
}

// Job is one refinement run.
type Job struct {
	Name    string
	Task    string
	Oracles refiner.Oracles
	Config  refiner.Config
}

type JobResult struct {
	Index    int
	Name     string
	Result   refiner.Result
	Err      error
	Duration time.Duration
}

// OK reports whether the job produced a draft without failing.
func (r JobResult) OK() bool { return r.Err == nil }

type OrchestratorResult struct {
	// Results are in job order.
	Results   []JobResult
	Succeeded int
	Failed    int
}

// Successful returns the results of jobs that did not fail, in job order.
func (r *OrchestratorResult) Successful() []JobResult {
	out := make([]JobResult, 0, r.Succeeded)
	for _, jr := range r.Results {
		if jr.OK() {
			out = append(out, jr)
		}
	}
	return out
}

type Orchestrator struct {
	config OrchestratorConfig
}

func New(config OrchestratorConfig) *Orchestrator {
	if config.MaxParallel <= 0 {
		config.MaxParallel = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{config: config}
}

func (o *Orchestrator) Execute(ctx context.Context, jobs []Job) *OrchestratorResult {
	result := &OrchestratorResult{Results: make([]JobResult, len(jobs))}

	resultChan := make(chan JobResult, len(jobs))
	sem := make(chan struct{}, o.config.MaxParallel)

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(index int, job Job) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultChan <- JobResult{Index: index, Name: job.Name, Err: fmt.Errorf("%s: not started: %w", job.Name, ctx.Err())}
				return
			}

			resultChan <- o.run(ctx, index, job)
		}(i, job)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for jr := range resultChan {
		result.Results[jr.Index] = jr
		if jr.OK() {
			result.Succeeded++
		} else {
			result.Failed++
		}
		if o.config.OnDone != nil {
			o.config.OnDone(jr)
		}
	}

	return result
}

func (o *Orchestrator) run(ctx context.Context, index int, job Job) JobResult {
	jobCtx := ctx
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := refiner.Run(jobCtx, job.Task, job.Oracles, job.Config)
	jr := JobResult{Index: index, Name: job.Name, Result: res, Duration: time.Since(start)}

	switch {
	case err != nil:
		jr.Err = fmt.Errorf("%s: %w", job.Name, err)
	case res.Trace.Failure != nil:
		jr.Err = fmt.Errorf("%s: %w", job.Name, res.Trace.Failure)
	case res.Trace.Reason == refiner.StopCancelled:
		jr.Err = fmt.Errorf("%s: %w", job.Name, context.Cause(jobCtx))
	}
	return jr
}
