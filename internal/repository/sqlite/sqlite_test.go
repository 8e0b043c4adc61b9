package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"camouflage/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	db, err := New(path)
	require.NoError(t, err)
	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := snapshotAt(ts, model.KindOutput)
	_, err = NewSnapshotRepository(db).Insert(&s)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err, "reopening an up-to-date index is a no-op")
	defer reopened.Close()

	got, err := NewSnapshotRepository(reopened).GetByFilename(s.Filename)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.Thumbnail, got.Thumbnail)
}

func TestNew_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := New(path)
	require.NoError(t, err)
	_, err = db.Conn().Exec(fmt.Sprintf(`PRAGMA user_version = %d`, len(migrations)+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = New(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot index")
}
