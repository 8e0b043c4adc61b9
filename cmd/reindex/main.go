package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"camouflage/internal/dto"
	"camouflage/internal/model"
	"camouflage/internal/repository/sqlite"
)

func main() {
	snapshotsDir := flag.String("snapshots", "snapshots", "Directory containing snapshots")
	dbPath := flag.String("db", "data/snapshots.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing snapshots from %s into %s\n", *snapshotsDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSnapshotRepository(db)

	snapshots, skipped, err := scanSnapshots(*snapshotsDir)
	if err != nil {
		log.Fatalf("Failed to read snapshots directory: %v", err)
	}
	if len(snapshots) == 0 {
		fmt.Println("No snapshots found to index")
		return
	}

	added, err := repo.InsertBatch(snapshots)
	if err != nil {
		log.Fatalf("Failed to insert snapshots: %v", err)
	}
	fmt.Printf("Indexed %d new snapshots (%d already present)\n", added, len(snapshots)-added)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or unreadable)\n", skipped)
	}

	total, err := repo.GetTotalCount(nil)
	if err != nil {
		return
	}
	size, _ := repo.GetTotalSize()
	fmt.Printf("\nIndex statistics:\n")
	fmt.Printf("   Total snapshots: %d\n", total)
	fmt.Printf("   Total size: %d bytes\n", size)
	for _, kind := range []string{model.KindOutput, model.KindBackground} {
		count, err := repo.GetTotalCount(&dto.SnapshotFilters{Kind: kind})
		if err == nil {
			fmt.Printf("      - %s: %d\n", kind, count)
		}
	}
}

// scanSnapshots builds index rows for every snapshot in dir. Thumbnails are
// attached to their full-size image rather than indexed on their own.
func scanSnapshots(dir string) ([]model.Snapshot, int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	present := make(map[string]bool, len(files))
	for _, file := range files {
		present[file.Name()] = true
	}

	var snapshots []model.Snapshot
	skipped := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != ".jpg" || model.IsThumbnail(name) {
			continue
		}

		timestamp, kind, err := model.ParseSnapshotFilename(name)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", name, err)
			skipped++
			continue
		}

		thumbnail := model.ThumbnailFilename(name)
		if !present[thumbnail] {
			thumbnail = ""
		}

		snapshots = append(snapshots, model.Snapshot{
			Filename:  name,
			Kind:      kind,
			Timestamp: timestamp,
			FilePath:  filepath.Join(dir, name),
			FileSize:  info.Size(),
			Thumbnail: thumbnail,
		})
	}
	return snapshots, skipped, nil
}
