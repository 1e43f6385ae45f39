package filterstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rpattn/aquamind/pkg/filter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ids(s *State, key string) []int64 {
	got, _ := s.Filters().Get(key)
	return got
}

func TestSetFilterValidation(t *testing.T) {
	s := New(Config{})

	s.SetFilter("hall__in", []int64{-1, 0})
	require.Contains(t, s.Errors(), "hall__in")
	assert.Equal(t, "Invalid ID: -1. IDs must be positive integers.", s.Errors()["hall__in"])
	assert.Equal(t, []int64{-1, 0}, ids(s, "hall__in"))

	s.SetFilter("hall__in", []int64{1, 2, 3})
	assert.NotContains(t, s.Errors(), "hall__in")
	assert.Equal(t, []int64{1, 2, 3}, ids(s, "hall__in"))
}

func TestInvalidKeyStillFormats(t *testing.T) {
	s := New(Config{})
	s.SetFilter("hall__in", []int64{-1, 2})

	assert.Contains(t, s.Errors(), "hall__in")
	assert.Equal(t, map[string]string{"hall__in": "-1,2"}, s.FormattedFilters())
}

func TestValidationCoversWholeMap(t *testing.T) {
	s := New(Config{MaxRecommended: 2})
	s.SetFilter("hall__in", []int64{1, 2, 3})
	s.SetFilter("area__in", []int64{0})

	assert.Contains(t, s.Warnings(), "hall__in")
	assert.Equal(t, "Filtering by 3 halls may impact performance. Consider narrowing your selection.", s.Warnings()["hall__in"])
	assert.Contains(t, s.Errors(), "area__in")

	s.ClearFilter("area__in")
	assert.Empty(t, s.Errors())
	assert.Contains(t, s.Warnings(), "hall__in")

	s.SetFilter("hall__in", []int64{})
	assert.Empty(t, s.Warnings())
	assert.Empty(t, s.Errors())
}

func TestInvalidKeySkipsWarning(t *testing.T) {
	s := New(Config{MaxRecommended: 1})
	s.SetFilter("batch__in", []int64{1, 2, -3})

	assert.Contains(t, s.Errors(), "batch__in")
	assert.NotContains(t, s.Warnings(), "batch__in")
}

func TestInitialFiltersAreNotValidated(t *testing.T) {
	initial := filter.NewMap[int64]()
	initial.Set("hall__in", []int64{-4})
	s := New(Config{InitialFilters: initial})

	assert.Empty(t, s.Errors())
	assert.True(t, s.HasFilter("hall__in"))

	initial.Set("hall__in", []int64{7})
	assert.Equal(t, []int64{-4}, ids(s, "hall__in"))
}

func TestAddRemoveToggle(t *testing.T) {
	s := New(Config{})

	s.AddToFilter("area__in", []int64{1, 2})
	s.AddToFilter("area__in", []int64{2, 3})
	assert.Equal(t, []int64{1, 2, 3}, ids(s, "area__in"))

	s.RemoveFromFilter("area__in", []int64{2})
	assert.Equal(t, []int64{1, 3}, ids(s, "area__in"))

	s.ToggleFilterID("area__in", 3)
	assert.Equal(t, []int64{1}, ids(s, "area__in"))
	s.ToggleFilterID("area__in", 9)
	assert.Equal(t, []int64{1, 9}, ids(s, "area__in"))

	s.RemoveFromFilter("area__in", []int64{1, 9})
	_, present := s.Filters().Get("area__in")
	assert.False(t, present)
	assert.False(t, s.HasFilter("area__in"))
}

func TestHasAnyFiltersAndSummary(t *testing.T) {
	s := New(Config{})
	assert.False(t, s.HasAnyFilters())
	assert.Equal(t, filter.NoFiltersApplied, s.FilterSummary())

	s.SetFilter("batch__in", []int64{})
	assert.False(t, s.HasAnyFilters())

	s.SetFilter("hall__in", []int64{1, 2, 3})
	s.SetFilter("area__in", []int64{10})
	assert.True(t, s.HasAnyFilters())
	assert.Equal(t, "Hall: 3, Area: 1", s.FilterSummary())
	assert.Equal(t, map[string]string{"hall__in": "1,2,3", "area__in": "10"}, s.FormattedFilters())

	s.ClearAllFilters()
	assert.False(t, s.HasAnyFilters())
	assert.Empty(t, s.FormattedFilters())
}

type changeRecorder struct {
	mu    sync.Mutex
	calls []map[string]string
	fired chan struct{}
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{fired: make(chan struct{}, 8)}
}

func (c *changeRecorder) onChange(formatted map[string]string) {
	c.mu.Lock()
	c.calls = append(c.calls, formatted)
	c.mu.Unlock()
	c.fired <- struct{}{}
}

func (c *changeRecorder) snapshot() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]string(nil), c.calls...)
}

func (c *changeRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.fired:
	case <-time.After(time.Second):
		t.Fatal("onChange was not called")
	}
}

func TestOnChangeIsDebounced(t *testing.T) {
	rec := newChangeRecorder()
	s := New(Config{OnChange: rec.onChange, DebounceDelay: 50 * time.Millisecond})
	defer s.Close()

	s.SetFilter("hall__in", []int64{1})
	s.SetFilter("hall__in", []int64{1, 2})
	s.SetFilter("area__in", []int64{5})

	rec.wait(t)
	time.Sleep(100 * time.Millisecond)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"hall__in": "1,2", "area__in": "5"}, calls[0])
}

func TestClearAllFiltersNotifiesEmptyMap(t *testing.T) {
	rec := newChangeRecorder()
	s := New(Config{OnChange: rec.onChange, DebounceDelay: 10 * time.Millisecond})
	defer s.Close()

	s.ClearAllFilters()
	rec.wait(t)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0])
}

func TestFlushAndClose(t *testing.T) {
	rec := newChangeRecorder()
	s := New(Config{OnChange: rec.onChange, DebounceDelay: time.Hour})

	s.SetFilter("hall__in", []int64{3})
	require.True(t, s.Flush())
	rec.wait(t)
	assert.Equal(t, []map[string]string{{"hall__in": "3"}}, rec.snapshot())

	s.SetFilter("hall__in", []int64{4})
	s.Close()
	assert.False(t, s.Flush())
	assert.Len(t, rec.snapshot(), 1)

	assert.False(t, New(Config{}).Flush())
}

func TestReturnedMapsAreCopies(t *testing.T) {
	s := New(Config{})
	s.SetFilter("hall__in", []int64{0})

	errs := s.Errors()
	errs["hall__in"] = "changed"
	delete(errs, "hall__in")
	assert.Contains(t, s.Errors(), "hall__in")

	snapshot := s.Filters()
	snapshot.Set("area__in", []int64{1})
	assert.False(t, s.HasFilter("area__in"))
}
