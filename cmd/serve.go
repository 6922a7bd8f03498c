package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cloutcash-matcher/internal/scheduler"
	"github.com/spigell/cloutcash-matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on (default :8080)")
	serveCmd.Flags().String("reset-schedule", "", "cron spec for clearing every exclusion set, e.g. @daily")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("exclusion.reset-schedule", serveCmd.Flags().Lookup("reset-schedule"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting cloutcash", zap.String("version", version))

	a, err := newApplication(config, logger)
	if err != nil {
		logger.Fatal("starting", zap.Error(err))
	}
	defer a.Close()

	srv, err := server.New(config.Server, server.Deps{
		Matcher:  a.engine,
		Recorder: a.recorder,
		Resetter: a.tracker,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		logger.Fatal("building http server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if spec := config.Exclusion.ResetSchedule; spec != "" {
		sched, err := scheduler.New(spec, a.tracker, logger)
		if err != nil {
			a.Close()
			logger.Fatal("building scheduler", zap.Error(err))
		}
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.Close()
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("bye")
}
