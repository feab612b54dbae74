package geodata

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/samirrijal/greenway/internal/core/domain"
	"github.com/samirrijal/greenway/internal/pkg/metrics"
)

// SnapshotStatus tags how the current coordinate set was obtained.
type SnapshotStatus int

const (
	// StatusOK means the coordinates come from a fresh, valid read.
	StatusOK SnapshotStatus = iota
	// StatusDegraded means the source is currently missing or malformed and
	// the last-known-good coordinates are being served instead.
	StatusDegraded
	// StatusUnavailable means no coordinates could ever be loaded.
	StatusUnavailable
)

// Snapshot is the result of one load attempt.
type Snapshot struct {
	Coordinates []domain.GeoPoint
	Status      SnapshotStatus
	Reason      string // set for Degraded and Unavailable
}

// Store loads traffic light coordinates from a JSON file and caches them by
// file modification time. It implements ports.ReferenceProvider and never
// fails a caller: load problems degrade to the previous snapshot or an empty
// set, because missing geodata must not block click ingestion.
type Store struct {
	path string

	mu     sync.Mutex
	coords []domain.GeoPoint
	mtime  time.Time
	loaded bool
}

// NewStore creates a store reading from path. The file is read lazily on
// first use and re-read only when its modification time changes.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Coordinates returns the current reference set, refreshing from disk when
// the source changed. Never returns an error.
func (s *Store) Coordinates() []domain.GeoPoint {
	return s.Load().Coordinates
}

// Load refreshes the snapshot if needed and reports how it was obtained.
func (s *Store) Load() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if s.loaded {
			slog.Warn("traffic lights file missing, serving cached coordinates",
				"path", s.path, "error", err)
			metrics.GeodataReloads.WithLabelValues("degraded").Inc()
			return Snapshot{Coordinates: s.coords, Status: StatusDegraded, Reason: "source missing"}
		}
		slog.Warn("traffic lights file not found", "path", s.path)
		metrics.GeodataReloads.WithLabelValues("unavailable").Inc()
		return Snapshot{Status: StatusUnavailable, Reason: "source missing"}
	}

	mtime := info.ModTime()
	if s.loaded && mtime.Equal(s.mtime) {
		return Snapshot{Coordinates: s.coords, Status: StatusOK}
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if s.loaded {
			slog.Warn("traffic lights file unreadable, serving cached coordinates",
				"path", s.path, "error", err)
			metrics.GeodataReloads.WithLabelValues("degraded").Inc()
			return Snapshot{Coordinates: s.coords, Status: StatusDegraded, Reason: "read failed"}
		}
		metrics.GeodataReloads.WithLabelValues("unavailable").Inc()
		return Snapshot{Status: StatusUnavailable, Reason: "read failed"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("traffic lights file is not a JSON array", "path", s.path, "error", err)
		if s.loaded {
			// Remember the mtime so a broken file is not re-parsed on
			// every request.
			s.mtime = mtime
			metrics.GeodataReloads.WithLabelValues("degraded").Inc()
			return Snapshot{Coordinates: s.coords, Status: StatusDegraded, Reason: "malformed source"}
		}
		metrics.GeodataReloads.WithLabelValues("unavailable").Inc()
		return Snapshot{Status: StatusUnavailable, Reason: "malformed source"}
	}

	coords, discarded := parseEntries(entries)
	if discarded > 0 {
		slog.Warn("discarded malformed traffic light entries",
			"path", s.path, "discarded", discarded, "kept", len(coords))
		metrics.GeodataEntriesDiscarded.Add(float64(discarded))
	}

	s.coords = coords
	s.mtime = mtime
	s.loaded = true
	metrics.GeodataReloads.WithLabelValues("ok").Inc()
	return Snapshot{Coordinates: coords, Status: StatusOK}
}

// RawPayload reads the file fresh and returns whatever JSON array it holds,
// without per-entry validation. Used to serve the file to map clients; any
// failure yields an empty list.
func (s *Store) RawPayload() []any {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("traffic lights file unavailable for client", "path", s.path, "error", err)
		return []any{}
	}

	var payload []any
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Warn("traffic lights file invalid for client", "path", s.path, "error", err)
		return []any{}
	}
	return payload
}

func parseEntries(entries []json.RawMessage) (coords []domain.GeoPoint, discarded int) {
	for _, entry := range entries {
		var record map[string]json.RawMessage
		if err := json.Unmarshal(entry, &record); err != nil {
			discarded++
			continue
		}

		lat, okLat := coerceFloat(record["lat"])
		lon, okLon := coerceFloat(record["lon"])
		if !okLat || !okLon {
			discarded++
			continue
		}

		p := domain.GeoPoint{Lat: lat, Lon: lon}
		if !p.InLatLonRange() {
			discarded++
			continue
		}

		coords = append(coords, p)
	}
	return coords, discarded
}

// coerceFloat accepts JSON numbers as well as numeric strings, matching what
// hand-edited geodata files actually contain.
func coerceFloat(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
