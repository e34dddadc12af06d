package calculator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mkvert/config"
)

// Job 一个待构建的配置
type Job struct {
	Name   string
	Config *config.Config
}

// Outcome is the result of one job. Exactly one of Result and Err is set.
type Outcome struct {
	Name    string
	Result  *Result
	Err     error
	Elapsed time.Duration
}

// Executor builds independent configurations in parallel. A failing job
// does not affect the others.
type Executor struct {
	workers int
	build   func(cfg *config.Config) (*Result, error)
}

func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		workers: workers,
		build:   Build,
	}
}

// Run builds every job and returns the outcomes in job order. Jobs not yet
// started when ctx is cancelled fail with the context error.
func (e *Executor) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = e.dispatch(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Executor) dispatch(ctx context.Context, job Job) Outcome {
	out := Outcome{Name: job.Name}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	start := time.Now()
	out.Result, out.Err = e.build(job.Config)
	out.Elapsed = time.Since(start)

	entry := log.WithFields(log.Fields{
		"job":     job.Name,
		"elapsed": out.Elapsed,
	})
	if out.Err != nil {
		entry.WithError(out.Err).Warn("build failed")
	} else {
		entry.WithField("iterations", out.Result.Iterations).Info("build finished")
	}
	return out
}
