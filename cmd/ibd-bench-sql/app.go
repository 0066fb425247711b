package main

import (
	"context"
	"errors"
	"time"

	"github.com/pinax-network/ibd-bench-sql/bench"
	"github.com/pinax-network/ibd-bench-sql/sinker"
	"github.com/streamingfast/cli"
	"github.com/streamingfast/shutter"
	"go.uber.org/zap"
)

const gracefulShutdownDelay = 30 * time.Second

type cliApplication struct {
	shutter *shutter.Shutter
}

func (a *cliApplication) WaitForTermination(logger *zap.Logger, unreadyPeriodAfterSignal, gracefulShutdownDelay time.Duration) error {
	// On any exit path, we synchronize the logger one last time
	defer func() {
		logger.Sync()
	}()

	signalHandler, isSignaled, _ := cli.SetupSignalHandler(unreadyPeriodAfterSignal, logger)
	select {
	case <-signalHandler:
		go a.shutter.Shutdown(nil)
	case <-a.shutter.Terminating():
		logger.Debug("run terminating", zap.Bool("from_signal", isSignaled.Load()), zap.Bool("with_error", a.shutter.Err() != nil))
	}

	select {
	case <-a.shutter.Terminated():
	case <-time.After(gracefulShutdownDelay):
		logger.Warn("application did not terminate within graceful period of " + gracefulShutdownDelay.String() + ", forcing termination")
	}

	return a.shutter.Err()
}

var errTerminated = errors.New("terminated before the end of the log")

type runResult struct {
	summary *bench.Summary
	err     error
}

// runSinker processes inputPath with s until the end of the log, a failure or a termination
// signal. A run stopped by a signal reports an error, its outputs are partial.
func runSinker(ctx context.Context, s *sinker.Sinker, inputPath string) (*bench.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.OnTerminating(func(err error) {
		if err != nil {
			zlog.Error("sinker terminating", zap.Error(err))
		}
		cancel()
	})

	results := make(chan runResult, 1)
	go func() {
		summary, err := s.Run(runCtx, inputPath)
		results <- runResult{summary: summary, err: err}
		s.Shutdown(err)
	}()

	app := &cliApplication{shutter: s.Shutter}
	appErr := app.WaitForTermination(zlog, 0, gracefulShutdownDelay)

	// Sinks are closed by the caller, Run must be out of them first
	result := <-results
	if appErr != nil {
		return nil, appErr
	}
	if result.err != nil {
		if errors.Is(result.err, context.Canceled) {
			return nil, errTerminated
		}
		return nil, result.err
	}
	return result.summary, nil
}
