package metrics

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SeriesTracker counts distinct method/route/status_code label sets.
// Unmatched paths are labelled with their raw path, so this is where a
// cardinality problem shows up first. It only reports; it never rejects
// or rewrites a label.
type SeriesTracker struct {
	mu sync.RWMutex

	// seen holds xxhash digests of every label set recorded
	seen map[uint64]struct{}

	// perRoute counts label sets per route label
	perRoute map[string]int
}

// NewSeriesTracker creates an empty tracker.
func NewSeriesTracker() *SeriesTracker {
	return &SeriesTracker{
		seen:     make(map[uint64]struct{}),
		perRoute: make(map[string]int),
	}
}

// Observe records a label set and reports whether it was new.
func (s *SeriesTracker) Observe(method, route, status string) bool {
	key := seriesKey(method, route, status)

	s.mu.RLock()
	_, exists := s.seen[key]
	s.mu.RUnlock()
	if exists {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have recorded it between the locks
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	s.perRoute[route]++
	return true
}

// Len returns the number of distinct label sets.
func (s *SeriesTracker) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Stats returns current cardinality statistics.
func (s *SeriesTracker) Stats() SeriesStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxRoute string
	var maxCount int
	for route, count := range s.perRoute {
		if count > maxCount || (count == maxCount && route < maxRoute) {
			maxCount = count
			maxRoute = route
		}
	}

	return SeriesStats{
		TotalSeries:    len(s.seen),
		UniqueRoutes:   len(s.perRoute),
		MaxSeriesRoute: maxRoute,
		MaxSeriesCount: maxCount,
	}
}

// SeriesStats provides cardinality usage information.
type SeriesStats struct {
	TotalSeries    int    `json:"total_series"`
	UniqueRoutes   int    `json:"unique_routes"`
	MaxSeriesRoute string `json:"max_series_route"`
	MaxSeriesCount int    `json:"max_series_count"`
}

// seriesKey hashes a label set. 0xff never appears in valid UTF-8, so it
// separates the values unambiguously.
func seriesKey(method, route, status string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(method)
	_, _ = d.Write([]byte{0xff})
	_, _ = d.WriteString(route)
	_, _ = d.Write([]byte{0xff})
	_, _ = d.WriteString(status)
	return d.Sum64()
}
