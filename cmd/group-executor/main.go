package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/metrics-client-go/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/hectorj2f/mesos-group-executor/admin"
	"github.com/hectorj2f/mesos-group-executor/config"
	"github.com/hectorj2f/mesos-group-executor/executor"
	"github.com/hectorj2f/mesos-group-executor/logger"
	"github.com/hectorj2f/mesos-group-executor/logsutil"
	"github.com/hectorj2f/mesos-group-executor/transport"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

type commandConfig struct {
	launcherDir string
	journald    bool
	debug       bool
}

func main() {
	mainCfg := commandConfig{}

	app := cli.NewApp()
	app.Name = "group-executor"
	app.Usage = "Mesos default task-group executor"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "launcher_dir",
			Destination: &mainCfg.launcherDir,
			Usage:       "Directory containing the mesos-containerizer launch helper",
		},
		cli.BoolTFlag{
			Name:        "journald",
			Usage:       "Enable logging to journald",
			Destination: &mainCfg.journald,
		},
		cli.BoolFlag{
			Name:        "debug",
			Destination: &mainCfg.debug,
			EnvVar:      "DEBUG",
		},
	}

	// avoid os.Exit as much as possible to let deferred functions run
	defer time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.Action = func(c *cli.Context) error {
		// mainCfg's Destination fields are only populated once app.Run
		// parses the flag set, so the journald/debug checks have to live
		// here rather than before app.Run is called.
		if mainCfg.journald {
			logsutil.MaybeSetupLoggerIfOnJournaldAvailable()
		} else {
			logsutil.MaybeSetupLoggerIfUnderSystemd()
		}
		if mainCfg.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		logrusLogger := logrus.StandardLogger()
		actionCtx := logger.WithLogger(ctx, logrusLogger)

		m := metrics.New(actionCtx, logrusLogger, nil)
		defer m.Flush()

		if err := run(actionCtx, mainCfg, m); err != nil {
			logger.G(actionCtx).WithError(err).Error("Executor exiting with error")
			return cli.NewExitError(err, 1)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		logger.G(ctx).WithError(err).Fatal("group-executor failed")
	}
}

func run(ctx context.Context, mainCfg commandConfig, m metrics.Reporter) error {
	cfg, err := config.FromEnvironment(mainCfg.launcherDir)
	if err != nil {
		return err
	}

	client := transport.New(cfg.AgentURL, cfg.AuthorizationHeader)
	e := executor.New(*cfg, client, m)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-sigCh:
			logger.G(runCtx).WithField("signal", sig).Info("Received signal, canceling executor")
			runCancel()
		case <-runCtx.Done():
		}
	}()

	srv := admin.New(func(ctx context.Context) (interface{}, error) {
		return e.Snapshot(ctx)
	})
	adminErrCh := make(chan error, 1)
	go func() {
		adminErrCh <- srv.ListenAndServe(runCtx)
	}()

	runErr := e.Run(runCtx)

	if err := srv.Close(); err != nil {
		return multierror.Append(runErr, err)
	}
	if adminErr := <-adminErrCh; adminErr != nil && runCtx.Err() == nil {
		return multierror.Append(runErr, adminErr)
	}
	return runErr
}
