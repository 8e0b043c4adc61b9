package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFilename_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.Local)

	name := SnapshotFilename(ts, KindOutput)
	assert.Equal(t, "2026-03-14_15-09_26.535_output.jpg", name)

	parsed, kind, err := ParseSnapshotFilename(name)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
	assert.Equal(t, KindOutput, kind)
}

func TestThumbnailFilename(t *testing.T) {
	thumb := ThumbnailFilename("2026-03-14_15-09_26.535_background.jpg")
	assert.Equal(t, "2026-03-14_15-09_26.535_background_thumb.jpg", thumb)
	assert.True(t, IsThumbnail(thumb))
	assert.False(t, IsThumbnail("2026-03-14_15-09_26.535_background.jpg"))
}

func TestParseSnapshotFilename_Invalid(t *testing.T) {
	for _, name := range []string{
		"2026-03-14_15-09_26.535_output_thumb.jpg",
		"2026-03-14_15-09_26.535_person.jpg",
		"notes.txt",
		"garbage_output.jpg",
		"2026-13-14_15-09_26.535_output.jpg",
	} {
		_, _, err := ParseSnapshotFilename(name)
		assert.Error(t, err, name)
	}
}

func TestValidFilename(t *testing.T) {
	name := "2026-03-14_15-09_26.535_output.jpg"
	assert.True(t, ValidFilename(name))
	assert.True(t, ValidFilename(ThumbnailFilename(name)))
	assert.Equal(t, name, SnapshotForThumbnail(ThumbnailFilename(name)))

	for _, bad := range []string{"", ".", "..", "../" + name, "snapshots.db", "_thumb.jpg"} {
		assert.False(t, ValidFilename(bad), bad)
	}
}
