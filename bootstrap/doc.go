// Package bootstrap runs an iterpipe binary as a finite task.
//
// NewApp applies defaults to the typed configuration, validates it and
// initializes the logger. RunTask runs start hooks, the task and stop
// hooks; SIGINT and SIGTERM cancel the task context.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStop(shutdownTelemetry)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return process(ctx)
//	})
package bootstrap
