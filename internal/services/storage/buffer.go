package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/dto"
	"camouflage/internal/frame"
	"camouflage/internal/logger"
	"camouflage/internal/metrics"
	"camouflage/internal/model"
	"camouflage/internal/repository"
)

// ThumbnailFactor is the downscale factor of snapshot thumbnails.
const ThumbnailFactor = 2

// BufferService buffers composites in memory and periodically flushes them to disk.
type BufferService struct {
	snapshotsDir  string
	snapshots     []dto.BufferedSnapshot
	bufferLimit   int
	flushInterval time.Duration
	mu            sync.Mutex
	logger        *logger.Logger
	metrics       *metrics.Metrics
	snapshotRepo  repository.SnapshotRepository
	now           func() time.Time
}

// NewBufferService creates a BufferService. snapshotRepo may be nil, in which
// case files are written without being indexed.
func NewBufferService(config *config.Config, logger *logger.Logger, metrics *metrics.Metrics, snapshotRepo repository.SnapshotRepository) *BufferService {
	return &BufferService{
		snapshotsDir:  config.SnapshotDirectory,
		snapshots:     make([]dto.BufferedSnapshot, 0),
		bufferLimit:   config.SnapshotBufferLimit,
		flushInterval: time.Duration(config.SnapshotFlushInterval) * time.Second,
		logger:        logger,
		metrics:       metrics,
		snapshotRepo:  snapshotRepo,
		now:           time.Now,
	}
}

// Directory returns where snapshots are written.
func (s *BufferService) Directory() string {
	return s.snapshotsDir
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	interval := s.flushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// AddSnapshot keeps a composite and its background until the next flush.
// Snapshots beyond the buffer limit are dropped.
func (s *BufferService) AddSnapshot(output, background *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.bufferLimit {
		return
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		Timestamp:  s.now().Format(model.TimestampLayout),
		Output:     output,
		Background: background,
	})
	s.metrics.SnapshotsBuffered.Add(1)
	s.logger.Info("Snapshot buffer size: %d/%d", len(s.snapshots), s.bufferLimit)
}

// Buffered returns the number of snapshots waiting for a flush.
func (s *BufferService) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// FlushSnapshots writes buffered snapshots to disk, indexes them, and empties
// the buffer. It returns the number of files written.
func (s *BufferService) FlushSnapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.snapshotsDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snap := range s.snapshots {
		ts, err := time.ParseInLocation(model.TimestampLayout, snap.Timestamp, time.Local)
		if err != nil {
			ts = s.now()
		}

		for _, item := range []struct {
			kind string
			f    *frame.Frame
		}{
			{model.KindOutput, snap.Output},
			{model.KindBackground, snap.Background},
		} {
			if item.f == nil {
				continue
			}
			if err := s.save(ts, item.kind, item.f); err != nil {
				s.logger.Error("Error saving %s snapshot: %v", item.kind, err)
				continue
			}
			savedCount++
		}
	}

	s.metrics.SnapshotsFlushed.Add(uint64(savedCount))
	s.logger.Info("Flushed %d snapshot files to disk", savedCount)
	s.snapshots = s.snapshots[:0]
	return savedCount
}

// save writes one frame and its thumbnail, then indexes the pair.
func (s *BufferService) save(ts time.Time, kind string, f *frame.Frame) error {
	filename := model.SnapshotFilename(ts, kind)
	fullpath := filepath.Join(s.snapshotsDir, filename)

	data, err := frame.EncodeJPEG(f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return err
	}

	thumbName := model.ThumbnailFilename(filename)
	thumb, err := frame.EncodeJPEG(Thumbnail(f, ThumbnailFactor))
	if err == nil {
		err = os.WriteFile(filepath.Join(s.snapshotsDir, thumbName), thumb, 0644)
	}
	if err != nil {
		s.logger.Warning("Error saving thumbnail %s: %v", thumbName, err)
		thumbName = ""
	}

	if s.snapshotRepo == nil {
		return nil
	}
	_, err = s.snapshotRepo.Insert(&model.Snapshot{
		Filename:  filename,
		Kind:      kind,
		Timestamp: ts,
		FilePath:  fullpath,
		FileSize:  int64(len(data)),
		Thumbnail: thumbName,
	})
	return err
}
