// Package filterstate holds a user's multi-entity filter selection, keeps
// validation errors and performance warnings in step with it, and
// notifies a consumer of the formatted filters after a quiet period.
package filterstate

import (
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/aquamind/pkg/filter"
)

// Config configures a State. Every field is optional.
type Config struct {
	// InitialFilters seeds the selection. It is not validated until the
	// first mutation.
	InitialFilters *filter.Map[int64]
	// DebounceDelay defaults to filter.DefaultDebounceDelay.
	DebounceDelay time.Duration
	// MaxRecommended defaults to filter.DefaultMaxRecommended.
	MaxRecommended int
	// OnChange receives the formatted filters, debounced.
	OnChange func(map[string]string)
	Logger   *zap.Logger
}

// State is safe for concurrent use. OnChange runs on a timer goroutine
// and never while the State's lock is held.
type State struct {
	mu       sync.Mutex
	filters  *filter.Map[int64]
	errors   map[string]string
	warnings map[string]string

	maxRecommended int
	notify         *filter.Debouncer[map[string]string]
	logger         *zap.Logger
}

// New creates a State from cfg.
func New(cfg Config) *State {
	s := &State{
		filters:        cfg.InitialFilters.Clone(),
		errors:         map[string]string{},
		warnings:       map[string]string{},
		maxRecommended: cfg.MaxRecommended,
		logger:         cfg.Logger,
	}
	if s.maxRecommended <= 0 {
		s.maxRecommended = filter.DefaultMaxRecommended
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if cfg.OnChange != nil {
		s.notify = filter.NewDebouncer(cfg.OnChange, cfg.DebounceDelay)
	}
	return s
}

// SetFilter replaces the IDs stored under key.
func (s *State) SetFilter(key string, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, ids)
}

// ClearFilter removes key from the selection.
func (s *State) ClearFilter(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(key)
}

// ClearAllFilters empties the selection.
func (s *State) ClearAllFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(filter.NewMap[int64]())
}

// AddToFilter unions ids into the IDs stored under key.
func (s *State) AddToFilter(key string, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(key, ids)
}

// RemoveFromFilter subtracts ids from key. A key left empty is cleared.
func (s *State) RemoveFromFilter(key string, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key, ids)
}

// ToggleFilterID removes id from key when present and adds it otherwise.
func (s *State) ToggleFilterID(key string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.filters.Get(key)
	if slices.Contains(current, id) {
		s.removeLocked(key, []int64{id})
		return
	}
	s.addLocked(key, []int64{id})
}

// HasFilter reports whether key holds at least one ID.
func (s *State) HasFilter(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, _ := s.filters.Get(key)
	return len(ids) > 0
}

// HasAnyFilters reports whether any key holds at least one ID.
func (s *State) HasAnyFilters() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ids := range s.filters.All() {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

// Filters returns a copy of the current selection.
func (s *State) Filters() *filter.Map[int64] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// FormattedFilters returns the selection as `__in` parameter values.
func (s *State) FormattedFilters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.FormatMultiEntityFilters(s.filters)
}

// FilterSummary returns a human readable description of the selection.
func (s *State) FilterSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.CreateFilterSummary(s.filters)
}

// Errors returns validation errors by filter key.
func (s *State) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.errors)
}

// Warnings returns performance warnings by filter key.
func (s *State) Warnings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.warnings)
}

// Flush delivers a pending OnChange notification immediately.
func (s *State) Flush() bool {
	if s.notify == nil {
		return false
	}
	return s.notify.Flush()
}

// Close cancels a pending OnChange notification.
func (s *State) Close() {
	if s.notify != nil {
		s.notify.Stop()
	}
}

func (s *State) setLocked(key string, ids []int64) {
	next := s.filters.Clone()
	next.Set(key, ids)
	s.commit(next)
}

func (s *State) clearLocked(key string) {
	next := s.filters.Clone()
	next.Delete(key)
	s.commit(next)
}

func (s *State) addLocked(key string, ids []int64) {
	current, _ := s.filters.Get(key)
	merged := make([]int64, 0, len(current)+len(ids))
	seen := make(map[int64]struct{}, len(current)+len(ids))
	for _, id := range slices.Concat(current, ids) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	s.setLocked(key, merged)
}

func (s *State) removeLocked(key string, ids []int64) {
	current, _ := s.filters.Get(key)
	remaining := slices.DeleteFunc(slices.Clone(current), func(id int64) bool {
		return slices.Contains(ids, id)
	})
	if len(remaining) == 0 {
		s.clearLocked(key)
		return
	}
	s.setLocked(key, remaining)
}

// commit validates the whole of next, replaces the selection and schedules
// a notification. It must be called with mu held.
func (s *State) commit(next *filter.Map[int64]) {
	errs := map[string]string{}
	warnings := map[string]string{}

	for key, ids := range next.All() {
		if len(ids) == 0 {
			continue
		}
		if err := filter.ValidateEntityIDs(ids); err != nil {
			errs[key] = err.Error()
			s.logger.Debug("invalid filter ids", zap.String("key", key), zap.Error(err))
			continue
		}
		optimized := filter.OptimizeEntityIDArray(ids, filter.EntityType(key), s.maxRecommended)
		if optimized.Warning != "" {
			warnings[key] = optimized.Warning
		}
	}

	s.errors = errs
	s.warnings = warnings
	s.filters = next

	if s.notify != nil {
		s.notify.Call(filter.FormatMultiEntityFilters(next))
	}
}
