package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 16)}
}

func (r *recorder) record(arg string) {
	r.mu.Lock()
	r.calls = append(r.calls, arg)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestDebounceFilterChangeCoalescesCalls(t *testing.T) {
	rec := newRecorder()
	debounced := DebounceFilterChange(rec.record, 30*time.Millisecond)

	debounced("first")
	debounced("second")
	debounced("third")

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("debounced callback never fired")
	}
	// Leave room for a stray second invocation to show up.
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"third"}, rec.snapshot())
}

func TestDebouncerSeparateWindows(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(rec.record, 10*time.Millisecond)

	d.Call("a")
	<-rec.done
	d.Call("b")
	<-rec.done

	assert.Equal(t, []string{"a", "b"}, rec.snapshot())
}

func TestDebouncerStop(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(rec.record, 20*time.Millisecond)

	assert.False(t, d.Stop())
	d.Call("dropped")
	assert.True(t, d.Stop())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestDebouncerFlush(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(rec.record, time.Hour)

	assert.False(t, d.Flush())
	d.Call("x")
	d.Call("y")
	require.True(t, d.Flush())
	<-rec.done

	assert.Equal(t, []string{"y"}, rec.snapshot())
	assert.False(t, d.Stop())
}

func TestNewDebouncerDefaultsDelay(t *testing.T) {
	d := NewDebouncer(func(string) {}, 0)
	assert.Equal(t, DefaultDebounceDelay, d.delay)
}
