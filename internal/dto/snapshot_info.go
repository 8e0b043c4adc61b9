package dto

import (
	"encoding/json"
	"time"
)

// SnapshotInfo is one entry of the snapshot list.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Thumbnail string    `json:"thumbnail"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Size      int64     `json:"size"`
}

// MarshalJSON customizes JSON output for SnapshotInfo to format date and time-of-day.
func (p SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(p),
	})
}
