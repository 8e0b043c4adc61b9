package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/frame"
	"camouflage/internal/logger"
	"camouflage/internal/services/source"

	"github.com/gorilla/websocket"
)

const (
	readTimeout = 60 * time.Second
	// maxFrameMessage bounds one encoded camera frame.
	maxFrameMessage = 2 << 20
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FrameSink consumes prepared camera frames.
type FrameSink interface {
	HandleFrame(f *frame.Frame) error
}

// ViewerHub tracks viewer connections.
type ViewerHub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// CameraWebsocketHandler accepts encoded frames from a remote camera, one per
// message, and feeds them to the pipeline. The cascade models a single scene,
// so only one camera may stream at a time; others get 409 Conflict.
func CameraWebsocketHandler(sink FrameSink, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	var streaming atomic.Bool
	return func(w http.ResponseWriter, r *http.Request) {
		camera := r.URL.Query().Get("id")

		if !streaming.CompareAndSwap(false, true) {
			logger.Warning("Rejected camera %s: another camera is already streaming", camera)
			http.Error(w, "Another camera is already streaming", http.StatusConflict)
			return
		}
		defer streaming.Store(false)

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(maxFrameMessage)
		connection.SetReadDeadline(time.Now().Add(readTimeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})
		defer connection.Close()

		logger.Info("Camera connected: %s", camera)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera %s disconnected", camera)
				} else {
					logger.Error("Error reading camera message: %v", err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(readTimeout))

			f, err := source.Decode(msg, cfg.FrameSize, false)
			if err != nil {
				logger.Warning("Camera %s sent an unreadable frame: %v", camera, err)
				continue
			}
			// Rejections are already logged by the sink.
			sink.HandleFrame(f)
		}
	}
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive broadcast frames.
func ViewWebsocketHandler(hub ViewerHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
