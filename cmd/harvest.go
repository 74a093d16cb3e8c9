package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/api"
	"github.com/marketharvest/carharvest/internal/archive"
	archivegcs "github.com/marketharvest/carharvest/internal/archive/gcs"
	archivelocal "github.com/marketharvest/carharvest/internal/archive/local"
	"github.com/marketharvest/carharvest/internal/config"
	"github.com/marketharvest/carharvest/internal/crawl"
	"github.com/marketharvest/carharvest/internal/logging"
	"github.com/marketharvest/carharvest/internal/metrics"
	"github.com/marketharvest/carharvest/internal/planner"
	"github.com/marketharvest/carharvest/internal/progress"
	"github.com/marketharvest/carharvest/internal/progress/sinks"
	gcppublisher "github.com/marketharvest/carharvest/internal/publisher/pubsub"
	"github.com/marketharvest/carharvest/internal/render"
	"github.com/marketharvest/carharvest/internal/store"
	"github.com/marketharvest/carharvest/internal/store/csvstore"
	"github.com/marketharvest/carharvest/internal/store/postgres"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs the city-by-city listing harvest",
		Long: `Plans the city queue from the reference list and the checkpoint
store, then harvests each remaining city: render the listing page, walk
its infinite scroll, extract every vehicle's details, and append rows to
the store in batches.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("store close failed", zap.Error(cerr))
		}
	}()

	renderer, err := render.New(render.Config{
		MaxSessions:  cfg.Render.MaxSessions,
		UserAgent:    cfg.Render.UserAgent,
		NavTimeout:   cfg.NavTimeout(),
		QueryTimeout: cfg.QueryTimeout(),
		DomainQPS:    cfg.Render.DomainQPS,
	}, logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			logger.Warn("renderer close failed", zap.Error(cerr))
		}
	}()

	var (
		fetcher  crawl.Fetcher
		detector crawl.Detector
	)
	if cfg.Probe.Enabled {
		collyFetcher, ferr := crawl.NewCollyFetcher(crawl.FetcherConfig{
			UserAgent:      cfg.Render.UserAgent,
			RequestTimeout: cfg.ProbeTimeout(),
		}, logger)
		if ferr != nil {
			return fmt.Errorf("init probe fetcher: %w", ferr)
		}
		fetcher = collyFetcher
		detector = crawl.NewHeuristicDetector(cfg.Probe.MinHTMLBytes, "")
	}

	hubSinks := []progress.Sink{sinks.NewLogSink(logger)}
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hubSinks = append(hubSinks, promSink)

	var statusSink *sinks.StatusSink
	if cfg.Server.Enabled {
		statusSink = sinks.NewStatusSink()
		hubSinks = append(hubSinks, statusSink)
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pub, perr := gcppublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if perr != nil {
			return fmt.Errorf("init pubsub publisher: %w", perr)
		}
		defer func() {
			if cerr := pub.Close(); cerr != nil {
				logger.Warn("pubsub close failed", zap.Error(cerr))
			}
		}()
		hubSinks = append(hubSinks, sinks.NewPublisherSink(pub, cfg.PubSub.TopicName, logger))
	}

	hub := progress.NewHub(progress.Config{
		BufferSize:  cfg.Harvest.EventBufferSize,
		SinkTimeout: cfg.SinkTimeout(),
		Logger:      logger,
	}, hubSinks...)

	if cfg.Server.Enabled {
		shutdown := startStatusServer(cfg, statusSink, logger)
		defer shutdown()
	}

	discoverer := crawl.NewListingDiscoverer(renderer, fetcher, detector, crawl.DiscoverConfig{
		SettleInterval:  cfg.ScrollSettle(),
		MaxScrollRounds: cfg.Harvest.MaxScrollRounds,
	}, logger)
	extractor := crawl.NewDetailExtractor(renderer, crawl.ExtractConfig{
		SettleDelay: cfg.DetailSettle(),
	}, logger)
	scheduler := crawl.NewBatchScheduler(extractor, st, hub, crawl.SchedulerConfig{
		PoolWidth:      cfg.Harvest.PoolWidth,
		FlushThreshold: cfg.Harvest.FlushThreshold,
	}, logger)
	queue := planner.New(cfg.Harvest.CityListPath, cfg.Harvest.PriorityCities, st, logger)
	orchestrator := crawl.NewOrchestrator(queue, discoverer, scheduler, hub, crawl.OrchestratorConfig{
		BaseURL: cfg.Harvest.BaseURL,
	}, logger)

	runErr := orchestrator.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cerr := hub.Close(closeCtx); cerr != nil {
		logger.Warn("progress hub close failed", zap.Error(cerr))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("harvest interrupted")
			return nil
		}
		return fmt.Errorf("run harvest: %w", runErr)
	}

	if cfg.Store.Backend == "csv" {
		if aerr := archiveCheckpoint(ctx, cfg, logger); aerr != nil {
			logger.Warn("checkpoint archive failed", zap.Error(aerr))
		}
	}

	logger.Info("harvest finished")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		st, err := postgres.Connect(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return st, nil
	default:
		return csvstore.New(cfg.Store.CSVPath, logger), nil
	}
}

func startStatusServer(cfg config.Config, statusSink *sinks.StatusSink, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(statusSink, nil, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}

// archiveCheckpoint snapshots the CSV store into a blob store when one
// is configured.
func archiveCheckpoint(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var blobs archive.BlobStore
	switch {
	case cfg.Archive.GCSBucket != "":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("storage client close failed", zap.Error(cerr))
			}
		}()
		bs, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return err
		}
		blobs = bs
	case cfg.Archive.LocalDir != "":
		bs, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return err
		}
		blobs = bs
	default:
		return nil
	}

	archiver := archive.NewArchiver(blobs, cfg.Archive.Prefix, logger)
	_, err := archiver.ArchiveFile(ctx, uuid.New(), cfg.Store.CSVPath)
	return err
}
