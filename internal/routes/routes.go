package routes

import (
	"net/http"

	"camouflage/internal/config"
	"camouflage/internal/handlers"
	"camouflage/internal/logger"
	"camouflage/internal/metrics"
	"camouflage/internal/middleware"
	"camouflage/internal/repository"
	"camouflage/internal/services"
	"camouflage/internal/services/storage"
	"camouflage/internal/services/websocket"
)

// SetupRoutes registers the viewer and camera sockets, the status, snapshot,
// log and metrics endpoints, and wraps the mux with panic recovery.
func SetupRoutes(cfg *config.Config, log *logger.Logger, metrics *metrics.Metrics,
	orchestrator *services.Orchestrator, hub *websocket.HubService,
	buffer *storage.BufferService, snapshotRepo repository.SnapshotRepository) http.Handler {
	mux := http.NewServeMux()

	// Streams
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(hub, log))
	// A configured local device is the only frame source.
	if cfg.SourceDevice == "" {
		mux.HandleFunc("/api/camera", handlers.CameraWebsocketHandler(orchestrator, cfg, log))
	}

	var buffered func() int
	if buffer != nil {
		buffered = buffer.Buffered
	}
	mux.HandleFunc("/api/status", handlers.StatusHandler(orchestrator, hub.GetClientCount, buffered, log))

	// Snapshots
	if snapshotRepo != nil {
		mux.HandleFunc("/api/snapshots", handlers.GetSnapshotsHandler(cfg, log, snapshotRepo))
		mux.HandleFunc("/api/snapshots/delete", handlers.DeleteSnapshotHandler(cfg, log, snapshotRepo))
		mux.HandleFunc("/api/snapshots/clear", handlers.ClearSnapshotsHandler(cfg, log, snapshotRepo))
	}
	mux.HandleFunc("/api/snapshots/view", handlers.ViewSnapshotHandler(cfg))

	// Log endpoints
	for _, level := range []struct{ path, file string }{
		{"/logs/info", logger.InfoFile},
		{"/logs/warning", logger.WarningFile},
		{"/logs/error", logger.ErrorFile},
	} {
		mux.HandleFunc(level.path, handlers.ShowLogsHandler(log, level.file))
		mux.HandleFunc(level.path+"/clear", handlers.ClearLogsHandler(log, level.file))
	}

	mux.Handle("/metrics", metrics.Handler())

	return middleware.RecoverMiddleware(log, mux)
}
