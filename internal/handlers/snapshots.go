package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/dto"
	"camouflage/internal/logger"
	"camouflage/internal/model"
	"camouflage/internal/repository"
)

const defaultPageSize = 24

// GetSnapshotsHandler returns a filtered, paginated list of snapshots.
func GetSnapshotsHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		kind := q.Get("kind")
		if kind != "" && kind != model.KindOutput && kind != model.KindBackground {
			http.Error(w, "Unknown snapshot kind", http.StatusBadRequest)
			return
		}

		filter := &dto.SnapshotFilters{
			Kind:       kind,
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		snapshots, err := snapshotRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := snapshotRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snapshots)
		}

		totalSize, err := snapshotRepo.GetTotalSize()
		if err != nil {
			logger.Error("Error summing snapshot sizes: %v", err)
			totalSize = 0
		}

		infos := make([]dto.SnapshotInfo, 0, len(snapshots))
		for _, s := range snapshots {
			infos = append(infos, dto.SnapshotInfo{
				Name:      s.Filename,
				Kind:      s.Kind,
				Thumbnail: s.Thumbnail,
				Date:      s.Timestamp,
				TimeOfDay: s.Timestamp,
				Size:      s.FileSize,
			})
		}

		data := dto.SnapshotsData{
			Snapshots:   infos,
			Directory:   cfg.SnapshotDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewSnapshotHandler serves a single snapshot or thumbnail named by the "name" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}
		if name != filepath.Base(name) || !model.ValidFilename(name) {
			http.Error(w, "Invalid snapshot name", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.SnapshotDirectory, name))
	}
}

// DeleteSnapshotHandler removes a snapshot and its thumbnail from disk and the index.
func DeleteSnapshotHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name != filepath.Base(name) || model.IsThumbnail(name) || !model.ValidFilename(name) {
			http.Error(w, "Valid name required", http.StatusBadRequest)
			return
		}

		for _, file := range []string{name, model.ThumbnailFilename(name)} {
			filePath := filepath.Join(cfg.SnapshotDirectory, file)
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				logger.Error("Failed to delete file %s: %v", filePath, err)
			}
		}

		if err := snapshotRepo.DeleteByFilename(name); err != nil {
			logger.Error("Failed to delete from database: %v", err)
		}

		logger.Info("Deleted snapshot: %s", name)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "name": name})
	}
}

// ClearSnapshotsHandler deletes every file in the snapshot directory and clears the index.
func ClearSnapshotsHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.SnapshotDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading snapshot directory: %v", err)
			http.Error(w, "Unable to read snapshot directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if !file.IsDir() {
				filePath := filepath.Join(cfg.SnapshotDirectory, file.Name())
				if err := os.Remove(filePath); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		if err := snapshotRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
		}

		logger.Info("All snapshots cleared from directory: %s", cfg.SnapshotDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
