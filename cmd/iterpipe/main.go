// Command iterpipe splits its input into lines and dispatches every line to
// an S3 or SQS sender through an iterating pipe. The aggregated result is
// written to standard output.
//
// Usage:
//
//	iterpipe [-config config.yml] [-env .env] [-input file] [-version]
//
// Every configuration key can be overridden with an ITERPIPE_ environment
// variable, for example ITERPIPE_PIPE_BLOCK_SIZE=50.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/iterpipe/bootstrap"
	"github.com/kbukum/iterpipe/config"
	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/observability"
	"github.com/kbukum/iterpipe/pipe"
	"github.com/kbukum/iterpipe/resilience"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
	"github.com/kbukum/iterpipe/sender/s3sender"
	"github.com/kbukum/iterpipe/sender/sqssender"
	"github.com/kbukum/iterpipe/version"
)

const (
	serviceName = "iterpipe"
	envPrefix   = "ITERPIPE"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	c := &cli{
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		newDispatcher: newDispatcher,
	}
	os.Exit(c.run(context.Background(), os.Args[1:]))
}

// dispatcherFactory builds the sender selected by cfg.
type dispatcherFactory func(ctx context.Context, cfg *SenderConfig, log *logger.Logger) (*sender.Dispatcher, error)

type cli struct {
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
	newDispatcher dispatcherFactory
	appOpts       []bootstrap.Option
}

func (c *cli) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var (
		configFile  = fs.String("config", "", "Path to the YAML configuration (searched when empty)")
		envFile     = fs.String("env", "", "Path to a .env file (searched when empty)")
		inputFile   = fs.String("input", "-", "Input file, - for standard input")
		showVersion = fs.Bool("version", false, "Print the version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	build := version.Get()
	if *showVersion {
		fmt.Fprintln(c.stdout, build.String())
		return exitOK
	}

	var cfg Config
	err := config.LoadConfig(serviceName, &cfg,
		config.WithConfigFile(*configFile),
		config.WithEnvFile(*envFile),
		config.WithEnvPrefix(envPrefix),
		config.WithDefaults(defaults()),
	)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitConfig
	}
	if cfg.Version == "" {
		cfg.Version = build.Short()
	}

	app, err := bootstrap.NewApp(&cfg, c.appOpts...)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitConfig
	}
	app.Logger.Debug("build", build.Fields())
	app.Summary.Track("sender", cfg.Sender.describe())
	app.Summary.Track("input", *inputFile)

	app.OnStart(func(ctx context.Context) error {
		shutdown, err := observability.Init(ctx, cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment)
		if err != nil {
			return err
		}
		app.OnStop(bootstrap.Hook(shutdown))
		return nil
	})

	err = app.RunTask(ctx, func(ctx context.Context) error {
		return c.process(ctx, app, *inputFile)
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeConfiguration) {
			return exitConfig
		}
		return exitFailed
	}
	return exitOK
}

// process runs the pipe once over the input and writes the result.
func (c *cli) process(ctx context.Context, app *bootstrap.App[*Config], inputFile string) error {
	cfg := app.Cfg

	metrics, err := observability.NewPipeMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}

	d, err := c.newDispatcher(ctx, &cfg.Sender, logger.Get(logger.ComponentSender))
	if err != nil {
		app.Logger.WithError(err).Error("cannot create sender")
		return err
	}
	if cfg.Sender.RateLimit.Enabled() {
		d = sender.WithRateLimit(d, resilience.NewRateLimiter(cfg.Sender.RateLimit))
	}
	d = sender.WithLogging(
		sender.WithMetrics(sender.WithTracing(d), metrics),
		logger.Get(logger.ComponentSender),
	)

	opts := []pipe.Option{
		pipe.WithName(cfg.Name),
		pipe.WithMetrics(metrics),
	}
	if stopOn := cfg.Input.StopOnResult; stopOn != "" {
		opts = append(opts, pipe.WithStopCondition(func(result string) bool {
			return result == stopOn
		}))
	}
	p, err := pipe.New(cfg.Input.splitter(), d, cfg.Pipe, opts...)
	if err != nil {
		app.Logger.WithError(err).Error("cannot create pipe")
		return err
	}

	sc := scope.New(scope.WithLogger(logger.Get(logger.ComponentScope)))
	defer func() {
		if err := sc.Close(); err != nil {
			app.Logger.WithError(err).Warn("scope teardown failed")
		}
	}()

	input, err := c.openInput(inputFile, cfg.Input.Charset)
	if err != nil {
		app.Logger.WithError(err).Error("cannot open input")
		return err
	}
	if err := input.ScheduleCloseOn(sc, "input"); err != nil {
		return err
	}

	res, err := p.Run(ctx, input, sc)
	if err != nil {
		app.Logger.WithError(err).Error("run failed", logger.Fields(
			logger.FieldState, res.State.String(),
			logger.FieldCount, res.Count,
		))
		return err
	}

	out, err := res.Message.AsText()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(c.stdout, out); err != nil {
		return err
	}
	app.Logger.Info("result written", logger.Fields(
		logger.FieldForward, res.Forward,
		logger.FieldCount, res.Count,
	))
	return nil
}

func (c *cli) openInput(path, charset string) (*message.Message, error) {
	var opts []message.Option
	if charset != "" {
		opts = append(opts, message.WithCharset(charset))
	}
	if path == "" || path == "-" {
		return message.FromReader(io.NopCloser(c.stdin), opts...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Configuration("input", fmt.Sprintf("cannot open %s", path)).WithCause(err)
	}
	return message.FromReader(f, opts...), nil
}

// newDispatcher connects to AWS and creates the configured sender.
func newDispatcher(ctx context.Context, cfg *SenderConfig, log *logger.Logger) (*sender.Dispatcher, error) {
	switch cfg.Type {
	case SenderS3:
		client, err := s3sender.NewClient(ctx, &cfg.S3)
		if err != nil {
			return nil, errors.Resource("s3", err)
		}
		s, err := s3sender.New(client, cfg.S3, log)
		if err != nil {
			return nil, err
		}
		return s.Dispatcher(), nil
	case SenderSQS:
		client, err := sqssender.NewClient(ctx, &cfg.SQS)
		if err != nil {
			return nil, errors.Resource("sqs", err)
		}
		s, err := sqssender.New(client, cfg.SQS, log)
		if err != nil {
			return nil, err
		}
		return s.Dispatcher(), nil
	default:
		return nil, errors.Configuration("sender.type", fmt.Sprintf("unsupported sender %q", cfg.Type))
	}
}
