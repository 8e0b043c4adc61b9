package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/kernels"
	"camouflage/internal/logger"
	"camouflage/internal/metrics"
	"camouflage/internal/repository"
	"camouflage/internal/repository/sqlite"
	"camouflage/internal/routes"
	"camouflage/internal/services"
	"camouflage/internal/services/compositor"
	"camouflage/internal/services/mask"
	"camouflage/internal/services/median"
	"camouflage/internal/services/segmentation"
	"camouflage/internal/services/source"
	"camouflage/internal/services/storage"
	"camouflage/internal/services/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config       *config.Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
	kernels      *kernels.Set
	segmenter    *segmentation.DNNSegmenter
	orchestrator *services.Orchestrator
	hubService   *websocket.HubService
	presenter    *services.Presenter
	bufferSvc    *storage.BufferService
	capture      *source.Capture
	db           *sqlite.DB
	snapshotRepo repository.SnapshotRepository
}

// NewApp builds every component from the environment. Only an unusable
// configuration is fatal; a missing model, kernels, or database disables the
// affected feature and is logged.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)
	m := metrics.New()

	set, err := kernels.Load(cfg.ClosingRadius, cfg.OpeningRadius)
	if err != nil {
		log.Warning("Mask cleanup disabled, could not build morphology kernels: %v", err)
		set = nil
	}

	cascade, err := median.NewCascade(cfg.StageSize)
	if err != nil {
		return nil, fmt.Errorf("median cascade: %w", err)
	}

	segmenter := segmentation.NewDNNSegmenter(cfg, log)
	orchestrator := services.NewOrchestrator(
		cascade,
		mask.NewBuilder(set, cfg.TargetLabel, cfg.FrameSize, cfg.FrameSize),
		compositor.New(compositor.Options{
			HeightFieldRadius: cfg.HeightFieldRadius,
			ShadingScale:      float64(cfg.ShadingScale),
			Size:              cfg.FrameSize,
		}),
		segmenter,
		cfg.FrameSize,
		m,
		log,
	)

	a := &App{
		config:       cfg,
		logger:       log,
		metrics:      m,
		kernels:      set,
		segmenter:    segmenter,
		orchestrator: orchestrator,
		hubService:   websocket.NewHubService(m, log),
		capture:      source.NewCapture(cfg, log),
	}
	a.presenter = services.NewPresenter(orchestrator, a.hubService, time.Duration(cfg.PresentInterval)*time.Millisecond, log)

	a.openSnapshotIndex()
	a.bufferSvc = storage.NewBufferService(cfg, log, m, a.snapshotRepo)
	orchestrator.SetSnapshotSink(a.bufferSvc, cfg.SnapshotEvery)

	return a, nil
}

func (a *App) openSnapshotIndex() {
	if err := os.MkdirAll(filepath.Dir(a.config.DatabasePath), 0755); err != nil {
		a.logger.Error("Snapshot index disabled, cannot create database directory: %v", err)
		return
	}
	db, err := sqlite.New(a.config.DatabasePath)
	if err != nil {
		a.logger.Error("Snapshot index disabled, cannot open database: %v", err)
		return
	}
	a.db = db
	a.snapshotRepo = sqlite.NewSnapshotRepository(db)
}

// Run starts the background services and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run(ctx)
	go a.presenter.Run(ctx)
	go a.bufferSvc.Run(ctx)

	if a.capture.Enabled() {
		go func() {
			if err := a.capture.Run(ctx, a.orchestrator.HandleFrame); err != nil {
				a.logger.Error("Local capture stopped: %v", err)
			}
		}()
	}

	router := routes.SetupRoutes(a.config, a.logger, a.metrics, a.orchestrator, a.hubService, a.bufferSvc, a.snapshotRepo)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP shutdown: %v", err)
		}
	}()

	status := a.orchestrator.Status()
	a.logger.Info("Optical camouflage server on http://localhost:%d", a.config.Port)
	a.logger.Info("Frame size %d, target label %d, segmenter available: %t, kernels loaded: %t",
		status.FrameSize, status.TargetLabel, status.SegmenterAvailable, status.KernelsLoaded)
	a.logger.Info("Snapshots: %s", a.config.SnapshotDirectory)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the pipeline, waits for the outstanding inference and releases
// native resources. Camera sockets that outlive the HTTP server are refused by
// the stopped pipeline, so nothing reaches the kernels after they are freed.
func (a *App) Close() {
	a.orchestrator.Stop()
	a.bufferSvc.FlushSnapshots()
	if err := a.segmenter.Close(); err != nil {
		a.logger.Error("Closing segmentation network: %v", err)
	}
	if a.kernels != nil {
		a.kernels.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
