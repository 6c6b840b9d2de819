// Package framework supervises the long running parts of a board service:
// the board driver, the HTTP server and the state publisher. They run side
// by side and the service stops as soon as one of them stops.
package framework

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrived
// before every part stopped.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun names a part for the supervisor logs, e.g. "driver".
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner supervises the parts of a service. Each part runs in its own
// goroutine with the runner's context; Wait collects their errors.
type Runner struct {
	Context context.Context
	Runners []Runnable

	cancel context.CancelFunc
	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a Runner bound to the background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner whose parts stop when ctx is done.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals stops the parts on Ctrl-C or SIGTERM. A second signal
// makes Wait return ErrForcedExit without waiting for the parts, e.g. a
// driver stuck on a dead serial port.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// StopAll ties the parts together: when one returns, for whatever reason,
// the others are canceled. A board service uses it so the HTTP server
// and publisher go away with the board connection. It must be called
// before Go.
func (r *Runner) StopAll() *Runner {
	r.Context, r.cancel = context.WithCancel(r.Context)
	return r
}

// Go starts the parts.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := strconv.Itoa(len(r.Runners))
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.Runners = append(r.Runners, runner)
		go r.run(runner, name)
	}
	return r
}

func (r *Runner) run(runner Runnable, name string) {
	glog.V(4).Infof("%s: started", name)
	err := runner.Run(r.Context)
	if err != nil && !errors.Is(err, context.Canceled) {
		glog.Errorf("%s: stopped: %v", name, err)
	} else {
		glog.V(4).Infof("%s: stopped", name)
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.errCh <- err
}

// Wait blocks until every part has stopped and returns their errors as
// one. A part stopped by cancellation contributes no error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel adapts a blocking call without a context, like
// http.Server.Serve, to a part. onCancel must make fn return; it is only
// called when ctx is done first.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}
