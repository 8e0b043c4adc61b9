package services

import (
	"context"
	"encoding/json"
	"time"

	"camouflage/internal/frame"
	"camouflage/internal/logger"
)

// Stream names used in viewer messages.
const (
	StreamInput      = "input"
	StreamBackground = "background"
	StreamOutput     = "output"
)

// Broadcaster delivers a message to every viewer.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// ViewerMessage is what viewers receive; Image is a base64 JPEG in JSON.
type ViewerMessage struct {
	Stream string `json:"stream"`
	Image  []byte `json:"image"`
}

// Presenter polls the input, background and output slots and pushes new
// frames to viewers, so the live scene can be shown beside the effect. The pipeline never waits on it.
type Presenter struct {
	streams  []presentedSlot
	hub      Broadcaster
	interval time.Duration
	logger   *logger.Logger
}

type presentedSlot struct {
	name string
	slot *frame.Slot
	seen uint64
}

func NewPresenter(orchestrator *Orchestrator, hub Broadcaster, interval time.Duration, logger *logger.Logger) *Presenter {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Presenter{
		streams: []presentedSlot{
			{name: StreamInput, slot: orchestrator.InputSlot()},
			{name: StreamBackground, slot: orchestrator.BackgroundSlot()},
			{name: StreamOutput, slot: orchestrator.OutputSlot()},
		},
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Presenter) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll publishes every slot whose version moved since the last poll and
// returns how many messages were sent.
func (p *Presenter) Poll() int {
	sent := 0
	for i := range p.streams {
		s := &p.streams[i]
		f, version := s.slot.Snapshot()
		if f == nil || version == s.seen {
			continue
		}

		data, err := frame.EncodeJPEG(f)
		if err != nil {
			p.logger.Error("Failed to encode %s frame: %v", s.name, err)
			continue
		}
		msg, err := json.Marshal(ViewerMessage{Stream: s.name, Image: data})
		if err != nil {
			p.logger.Error("Failed to marshal %s message: %v", s.name, err)
			continue
		}
		if !p.hub.Broadcast(msg) {
			continue
		}
		s.seen = version
		sent++
	}
	return sent
}
