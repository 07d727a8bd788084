package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gcpubsub "cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/appearances-scraper/internal/api"
	"github.com/JakeFAU/appearances-scraper/internal/config"
	"github.com/JakeFAU/appearances-scraper/internal/discovery"
	"github.com/JakeFAU/appearances-scraper/internal/extract"
	"github.com/JakeFAU/appearances-scraper/internal/flaresolverr"
	"github.com/JakeFAU/appearances-scraper/internal/id/uuid"
	"github.com/JakeFAU/appearances-scraper/internal/input"
	"github.com/JakeFAU/appearances-scraper/internal/logging"
	"github.com/JakeFAU/appearances-scraper/internal/metrics"
	"github.com/JakeFAU/appearances-scraper/internal/orchestrator"
	"github.com/JakeFAU/appearances-scraper/internal/pacing"
	"github.com/JakeFAU/appearances-scraper/internal/pagination"
	"github.com/JakeFAU/appearances-scraper/internal/resilience"
	"github.com/JakeFAU/appearances-scraper/internal/roster"
	"github.com/JakeFAU/appearances-scraper/internal/storage"
	gcsstore "github.com/JakeFAU/appearances-scraper/internal/storage/gcs"
	"github.com/JakeFAU/appearances-scraper/internal/storage/local"
	"github.com/JakeFAU/appearances-scraper/internal/storage/memory"
	"github.com/JakeFAU/appearances-scraper/internal/storage/postgres"
	pubsubstore "github.com/JakeFAU/appearances-scraper/internal/storage/pubsub"
)

const failureSummaryLimit = 10

var cfgFile string

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appearances-scraper",
		Short: "Scrape club rosters and appearance counts through a FlareSolverr proxy.",
		Long: `appearances-scraper walks a list of clubs, discovers the seasons each club has
on record and saves every player's appearance count per season. Requests go through
a FlareSolverr container that is restarted automatically when it degrades.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); SCRAPER_* env vars override it")
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go forceExitOnSecondSignal(ctx, stop)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func forceExitOnSecondSignal(ctx context.Context, stop context.CancelFunc) {
	<-ctx.Done()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	stop()
	<-sigs
	fmt.Fprintln(os.Stderr, "second interrupt, exiting")
	os.Exit(130)
}

// run wires every component from cfg and executes one sweep.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics.Init()

	runID, err := uuid.NewGenerator().NewRunID()
	if err != nil {
		return fmt.Errorf("create run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	clubs, err := input.LoadClubs(cfg.Input.ClubsFile, cfg.Input.StartMarker)
	if err != nil {
		return fmt.Errorf("load clubs: %w", err)
	}
	if len(clubs) == 0 {
		logger.Warn("club list is empty", zap.String("path", cfg.Input.ClubsFile))
	}

	proxy := newProxyClient(cfg, logger)
	controller := resilience.New(proxy,
		resilience.WithPolicy(resilience.Policy{
			BackoffUnit:        cfg.Retry.BackoffUnit,
			TimeoutBackoffUnit: cfg.Retry.TimeoutBackoffUnit,
			FlatBackoff:        cfg.Retry.FlatBackoff,
			RestartBackoff:     cfg.Retry.RestartBackoff,
		}),
		resilience.WithSpacer(pacing.NewSpacer(cfg.Pacing.PageDelay)),
		resilience.WithSessionPrefix(uuid.SessionPrefix(cfg.Proxy.SessionPrefix, runID)),
		resilience.WithLogger(logger),
	)

	seasons, err := seasonSource(cfg, controller, logger)
	if err != nil {
		return err
	}

	extractor := extract.TableExtractor{Min: cfg.Extract.MinAppearances, Max: cfg.Extract.MaxAppearances}
	walker := pagination.NewWalker(pagination.Config{
		Attempts:  cfg.Retry.SeasonAttempts,
		PageDelay: cfg.Pacing.PageDelay,
	}, controller, extractor, nil, logger)

	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	runner := orchestrator.New(orchestrator.Config{
		RunID:             runID,
		BaseURL:           cfg.Site.BaseURL,
		DebugMinBytes:     cfg.Output.DebugMinBytes,
		SeasonDelayMin:    cfg.Pacing.SeasonDelayMin,
		SeasonDelayMax:    cfg.Pacing.SeasonDelayMax,
		ClubDelayMin:      cfg.Pacing.ClubDelayMin,
		ClubDelayMax:      cfg.Pacing.ClubDelayMax,
		HealthCheckEvery:  cfg.Pacing.HealthCheckEvery,
		Settle:            cfg.Pacing.Settle,
		PreflightURL:      cfg.Preflight.URL,
		PreflightMinBytes: cfg.Preflight.MinBytes,
	}, orchestrator.Deps{
		Proxy:   proxy,
		Fetcher: controller,
		Seasons: seasons,
		Walker:  walker,
		Store:   stores.primary,
		Mirrors: stores.mirrors,
		Logger:  logger,
	})

	if cfg.Metrics.Addr != "" {
		serverCtx, cancelServer := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelServer()
		go func() {
			if err := api.NewServer(runner, proxy, logger).ListenAndServe(serverCtx, cfg.Metrics.Addr); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	if cfg.Preflight.Enabled {
		if err := runner.Preflight(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("interrupted during preflight")
				return nil
			}
			return fmt.Errorf("preflight: %w", err)
		}
	}

	logger.Info("run started", zap.Int("clubs", len(clubs)), zap.String("output", cfg.Output.Dir))
	report := runner.Run(ctx, clubs)
	orchestrator.Summarize(logger, report, failureSummaryLimit)
	return nil
}

func newProxyClient(cfg config.Config, logger *zap.Logger) *flaresolverr.Client {
	restarter := flaresolverr.NewDockerRestarter(flaresolverr.DockerConfig{
		Binary:        cfg.Proxy.DockerBinary,
		ContainerName: cfg.Proxy.ContainerName,
		Image:         cfg.Proxy.Image,
		Port:          cfg.Proxy.Port,
		Settle:        cfg.Proxy.RestartSettle,
	}, nil, nil, logger)

	return flaresolverr.New(flaresolverr.Config{
		Endpoint:       cfg.Proxy.Endpoint,
		HealthTimeout:  cfg.Proxy.HealthTimeout,
		CommandTimeout: cfg.Proxy.CommandTimeout,
		MaxTimeout:     cfg.Proxy.MaxTimeout,
		RequestTimeout: cfg.Proxy.RequestTimeout,
		ReadyAttempts:  cfg.Proxy.RestartReadyAttempts,
		PollInterval:   cfg.Proxy.RestartPollInterval,
	},
		flaresolverr.WithRestarter(restarter),
		flaresolverr.WithLogger(logger),
	)
}

// seasonSource prefers a configured season list over live discovery.
func seasonSource(cfg config.Config, fetcher discovery.Fetcher, logger *zap.Logger) (discovery.SeasonSource, error) {
	seasons, ok, err := input.LoadSeasons(cfg.Input.SeasonsFile)
	if err != nil {
		return nil, fmt.Errorf("load seasons: %w", err)
	}
	if ok {
		logger.Info("using configured season list", zap.Int("seasons", len(seasons)))
		return discovery.Static(seasons), nil
	}
	current, err := roster.ParseSeason(cfg.Site.CurrentSeason)
	if err != nil {
		return nil, fmt.Errorf("parse current season: %w", err)
	}
	return discovery.New(discovery.Config{
		BaseURL:  cfg.Site.BaseURL,
		Current:  current,
		Attempts: cfg.Retry.DiscoveryAttempts,
	}, fetcher, logger), nil
}

// seasonStores is the primary store plus the optional mirrors.
type seasonStores struct {
	primary storage.SeasonStore
	mirrors storage.SeasonStore
	close   func()
}

// buildStores writes the local tree (or memory on a dry run) and mirrors to the
// optional remote stores.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (seasonStores, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (seasonStores, error) {
		closeAll()
		return seasonStores{}, err
	}

	if cfg.Storage.DryRun {
		logger.Info("dry run, results kept in memory only")
		return seasonStores{primary: memory.NewStore(), close: func() {}}, nil
	}

	localStore, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return fail(fmt.Errorf("open output dir: %w", err))
	}

	var mirrors storage.Multi
	if cfg.Storage.Postgres.DSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.Storage.Postgres.DSN, Table: cfg.Storage.Postgres.Table})
		if err != nil {
			return fail(fmt.Errorf("open postgres store: %w", err))
		}
		closers = append(closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("ensure postgres schema: %w", err))
		}
		mirrors = append(mirrors, pg)
		logger.Info("postgres store enabled", zap.String("table", cfg.Storage.Postgres.Table))
	}

	if cfg.Storage.GCS.Bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return fail(fmt.Errorf("create gcs client: %w", err))
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("close gcs client", zap.Error(err))
			}
		})
		bucketStore, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCS.Bucket, Prefix: cfg.Storage.GCS.Prefix})
		if err != nil {
			return fail(fmt.Errorf("open gcs store: %w", err))
		}
		mirrors = append(mirrors, bucketStore)
		logger.Info("gcs store enabled", zap.String("bucket", cfg.Storage.GCS.Bucket))
	}

	if cfg.Storage.PubSub.Topic != "" {
		client, err := gcpubsub.NewClient(ctx, cfg.Storage.PubSub.ProjectID)
		if err != nil {
			return fail(fmt.Errorf("create pubsub client: %w", err))
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("close pubsub client", zap.Error(err))
			}
		})
		topic := client.Topic(cfg.Storage.PubSub.Topic)
		closers = append(closers, topic.Stop)
		events, err := pubsubstore.New(topic)
		if err != nil {
			return fail(fmt.Errorf("open pubsub store: %w", err))
		}
		mirrors = append(mirrors, events)
		logger.Info("pubsub events enabled", zap.String("topic", cfg.Storage.PubSub.Topic))
	}

	stores := seasonStores{primary: localStore, close: closeAll}
	if len(mirrors) > 0 {
		stores.mirrors = mirrors
	}
	return stores, nil
}
