// Package cache persists the last successfully normalized event set so a
// failed fetch cycle can fall back to it instead of showing nothing.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// ErrNoCache is returned by Load when no cache file exists yet. Distinct
// from a corrupt or unreadable cache, which surfaces the underlying error.
var ErrNoCache = errors.New("no cached events")

// record is the on-disk form of one event. Instants are RFC3339 (the
// time.Time JSON encoding), optional fields are omitted when absent.
type record struct {
	Title        string    `json:"title"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsAllDay     bool      `json:"is_all_day"`
	Location     string    `json:"location,omitempty"`
	MeetingURL   string    `json:"meeting_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	CalendarName string    `json:"calendar_name,omitempty"`
}

// Store reads and writes the event cache file.
type Store struct {
	path string
}

// NewStore returns a store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Persist writes the event set atomically (temp file + rename, 0600).
func (s *Store) Persist(events []model.Event) error {
	records := make([]record, 0, len(events))
	for _, ev := range events {
		records = append(records, record{
			Title:        ev.Title,
			StartTime:    ev.Start,
			EndTime:      ev.End,
			IsAllDay:     ev.AllDay,
			Location:     ev.Location,
			MeetingURL:   ev.MeetingURL,
			Description:  ev.Description,
			CalendarName: ev.CalendarName,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calbar-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}

	appLog.Debug("event cache saved", "path", s.path, "count", len(events))
	return nil
}

// Load reads the cached event set. Returns ErrNoCache when the file does
// not exist.
func (s *Store) Load() ([]model.Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCache
		}
		return nil, err
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(records))
	for _, r := range records {
		events = append(events, model.Event{
			Title:        r.Title,
			Start:        r.StartTime,
			End:          r.EndTime,
			AllDay:       r.IsAllDay,
			Location:     r.Location,
			MeetingURL:   r.MeetingURL,
			Description:  r.Description,
			CalendarName: r.CalendarName,
		})
	}

	appLog.Info("events loaded from cache", "path", s.path, "count", len(events))
	return events, nil
}
