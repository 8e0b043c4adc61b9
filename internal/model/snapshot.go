package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the timestamp prefix of every snapshot filename.
const TimestampLayout = "2006-01-02_15-04_05.000"

// Snapshot kinds.
const (
	KindOutput     = "output"
	KindBackground = "background"
)

const thumbnailSuffix = "_thumb"

// Snapshot represents a stored frame record.
type Snapshot struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	Thumbnail string    `json:"thumbnail"`
}

// SnapshotFilename builds "<timestamp>_<kind>.jpg".
func SnapshotFilename(ts time.Time, kind string) string {
	return fmt.Sprintf("%s_%s.jpg", ts.Format(TimestampLayout), kind)
}

// ThumbnailFilename derives the thumbnail name from a snapshot filename.
func ThumbnailFilename(filename string) string {
	return strings.TrimSuffix(filename, ".jpg") + thumbnailSuffix + ".jpg"
}

// IsThumbnail reports whether filename names a thumbnail.
func IsThumbnail(filename string) bool {
	return strings.HasSuffix(strings.TrimSuffix(filename, ".jpg"), thumbnailSuffix)
}

// SnapshotForThumbnail returns the snapshot filename a thumbnail was derived from.
func SnapshotForThumbnail(thumbnail string) string {
	return strings.TrimSuffix(strings.TrimSuffix(thumbnail, ".jpg"), thumbnailSuffix) + ".jpg"
}

// ValidFilename reports whether name is a bare snapshot or thumbnail filename.
func ValidFilename(name string) bool {
	if IsThumbnail(name) {
		name = SnapshotForThumbnail(name)
	}
	_, _, err := ParseSnapshotFilename(name)
	return err == nil
}

// ParseSnapshotFilename recovers the timestamp and kind from a snapshot filename.
func ParseSnapshotFilename(filename string) (timestamp time.Time, kind string, err error) {
	if !strings.HasSuffix(filename, ".jpg") || IsThumbnail(filename) {
		return time.Time{}, "", fmt.Errorf("not a snapshot file: %s", filename)
	}
	name := strings.TrimSuffix(filename, ".jpg")
	parts := strings.Split(name, "_")

	if len(parts) != 4 {
		return time.Time{}, "", fmt.Errorf("invalid filename format: %s", filename)
	}

	// Timestamp spans the first three parts: date, hour-minute, seconds.milliseconds
	timeStr := parts[0] + "_" + parts[1] + "_" + parts[2]
	timestamp, err = time.ParseInLocation(TimestampLayout, timeStr, time.Local)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("failed to parse timestamp: %w", err)
	}

	kind = parts[3]
	if kind != KindOutput && kind != KindBackground {
		return time.Time{}, "", fmt.Errorf("unknown snapshot kind %q in %s", kind, filename)
	}
	return timestamp, kind, nil
}
