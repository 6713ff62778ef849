package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/iterpipe/logger"
)

// DefaultGracefulTimeout bounds the stop hooks unless WithGracefulTimeout is used.
const DefaultGracefulTimeout = 15 * time.Second

// App runs a finite task with a typed configuration.
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger
	Summary *Summary

	gracefulTimeout time.Duration
	signals         []os.Signal
	onStart         []Hook
	onStop          []Hook
}

// NewApp applies defaults to cfg, validates it and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.GetServiceConfig()

	o := resolveOptions(opts)
	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: DefaultGracefulTimeout,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.signals != nil {
		app.signals = o.signals
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&base.Logging)
		logger.RegisterDefaults()
		app.Logger = logger.GetGlobalLogger()
	}
	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// RunTask runs the start hooks, task and stop hooks. The task context is
// canceled by ctx or by one of the configured signals. A task error wins
// over a stop hook error.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	start := time.Now()
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	if err := runHooks(ctx, a.onStart); err != nil {
		stopErr := a.stop()
		if stopErr != nil {
			a.Logger.WithError(stopErr).Warn("stop hooks failed after start failure")
		}
		return fmt.Errorf("start: %w", err)
	}
	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Display(a.Logger)

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if len(a.signals) > 0 {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, a.signals...)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
				cancel()
			case <-taskCtx.Done():
			}
		}()
	}

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			a.Logger.WithError(stopErr).Warn("stop hooks failed after task failure")
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := runStopHooks(ctx, a.onStop)
	if err != nil {
		a.Logger.WithError(err).Error("shutdown completed with errors")
		return err
	}
	a.Logger.Debug("shutdown complete")
	return nil
}
