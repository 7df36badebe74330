package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phillt/bernard-sub001/internal/cron"
	"github.com/phillt/bernard-sub001/internal/gateway"
	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/telemetry"
)

func pendingCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Manage transcripts queued for background fact extraction",
	}

	var model string
	write := &cobra.Command{
		Use:   "write <transcript-file|->",
		Short: "Queue a serialized transcript for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.Provider.Anthropic.Model
			}
			path, err := memory.WritePending(cfg.Memory.Dir, memory.PendingExtraction{
				Transcript: newRedactor(cfg).String(string(data)),
				Provider:   "anthropic",
				Model:      model,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	write.Flags().StringVar(&model, "model", "", "Model recorded with the transcript")

	list := &cobra.Command{
		Use:   "list",
		Short: "List queued transcripts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			paths, err := memory.ListPending(cfg.Memory.Dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.AddCommand(write, list)
	return cmd
}

// newScheduler registers the extraction and sweep jobs.
func (a *app) newScheduler() (*cron.Scheduler, error) {
	p, err := a.newProvider()
	if err != nil {
		return nil, err
	}

	s := cron.NewScheduler(a.logger)
	jobs := []cron.Job{
		&cron.PendingExtractionJob{
			Dir:          a.cfg.Memory.Dir,
			Extractor:    memory.NewLLMExtractor(p, a.cfg.Compression.ExtractionMaxTokens),
			Store:        a.cache,
			Logger:       a.logger,
			ScheduleExpr: a.cfg.Worker.Schedule,
		},
		&cron.PendingSweepJob{
			Dir:          a.cfg.Memory.Dir,
			Logger:       a.logger,
			ScheduleExpr: a.cfg.Worker.SweepSchedule,
		},
	}
	for _, j := range jobs {
		if err := s.RegisterJob(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func workerCmd(flags *globalFlags) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain queued transcripts into long-term memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				s, err := a.newScheduler()
				if err != nil {
					return err
				}
				if once {
					return s.RunNow(ctx)
				}

				if err := s.Start(); err != nil {
					return err
				}
				<-ctx.Done()
				return s.Stop(context.Background())
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Process the queue once and exit")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var noWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and the background worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
					Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
					ServiceName: a.cfg.Telemetry.ServiceName,
					Version:     version,
					Insecure:    a.cfg.Telemetry.Insecure,
				})
				if err != nil {
					return err
				}
				defer func() { _ = shutdownTracing(context.Background()) }()

				gc := a.cfg.Gateway
				gw := gateway.New(gateway.Config{
					Bind: gc.Addr,
					Auth: gateway.AuthConfig{
						BearerToken: gc.BearerToken,
						BasicUser:   gc.BasicUser,
						BasicPass:   gc.BasicPass,
					},
					WebhookSecret: gc.WebhookSecret,
				}, a.cache,
					gateway.WithLogger(a.logger),
					gateway.WithPrometheus(a.registry, a.registry),
					gateway.WithPendingDir(a.cfg.Memory.Dir),
					gateway.WithRedactor(a.redactor),
				)
				var sched *cron.Scheduler
				if !noWorker {
					if sched, err = a.newScheduler(); err != nil {
						return err
					}
					if err := sched.Start(); err != nil {
						return err
					}
				}

				if err := gw.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()

				if sched != nil {
					if err := sched.Stop(context.Background()); err != nil {
						a.logger.Warn("scheduler stop failed", "error", err)
					}
				}
				return gw.Stop(context.Background())
			})
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Serve the gateway without the extraction worker")
	return cmd
}
