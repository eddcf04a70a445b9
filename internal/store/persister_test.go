package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

func TestPersisterCoalescesWrites(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()
	p := NewPersister(rs, 30*time.Millisecond, zerolog.Nop())
	defer p.Stop()

	for i := 0; i < 5; i++ {
		state := sampleState("u1")
		state.Strategies[0].Name = string(rune('A' + i))
		p.Schedule(state, SessionPolicy{})
	}
	assert.True(t, p.Pending())

	require.Eventually(t, func() bool { return p.Writes() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.Pending())
	assert.Equal(t, "E", rs.LoadUserState(ctx, "u1").Strategies[0].Name)
}

func TestPersisterFlushWritesImmediately(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()
	p := NewPersister(rs, time.Hour, zerolog.Nop())

	p.Schedule(sampleState("u1"), SessionPolicy{})
	require.NoError(t, p.Flush(ctx))

	assert.Equal(t, 1, p.Writes())
	assert.Len(t, rs.LoadUserState(ctx, "u1").Strategies, 1)

	require.NoError(t, p.Flush(ctx))
	assert.Equal(t, 1, p.Writes())
}

func TestPersisterStopDropsPending(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()
	p := NewPersister(rs, 20*time.Millisecond, zerolog.Nop())

	p.Schedule(sampleState("u1"), SessionPolicy{})
	p.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, p.Writes())
	assert.Empty(t, rs.LoadUserState(ctx, "u1").Strategies)
}

// gatedKV blocks the first partition write until release is closed.
type gatedKV struct {
	*MemoryKV
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedKV() *gatedKV {
	return &gatedKV{MemoryKV: NewMemoryKV(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedKV) Set(ctx context.Context, key, value string) error {
	if strings.HasPrefix(key, DataKeyPrefix) {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.MemoryKV.Set(ctx, key, value)
}

func namedState(name string) models.AppState {
	state := sampleState("u1")
	state.Strategies[0].Name = name
	return state
}

func TestPersisterFlushWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	durable := newGatedKV()
	rs := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
	p := NewPersister(rs, 5*time.Millisecond, zerolog.Nop())

	p.Schedule(namedState("OLD"), SessionPolicy{})
	select {
	case <-durable.entered:
	case <-time.After(time.Second):
		t.Fatal("debounced write did not start")
	}

	p.Schedule(namedState("NEW"), SessionPolicy{})
	flushed := make(chan error, 1)
	go func() { flushed <- p.Flush(ctx) }()

	select {
	case <-flushed:
		t.Fatal("Flush returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(durable.release)
	require.NoError(t, <-flushed)
	assert.Equal(t, "NEW", rs.LoadUserState(ctx, "u1").Strategies[0].Name)
	assert.Equal(t, 2, p.Writes())
}

func TestPersisterSkipsSupersededState(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()
	p := NewPersister(rs, time.Hour, zerolog.Nop())

	p.Schedule(namedState("OLD"), SessionPolicy{})
	p.Schedule(namedState("NEW"), SessionPolicy{})
	require.NoError(t, p.Flush(ctx))

	// A save claimed for the first generation lands after the second.
	p.mu.Lock()
	p.inflight++
	p.mu.Unlock()
	require.NoError(t, p.write(ctx, &pendingSave{gen: 1, state: namedState("OLD")}))

	assert.Equal(t, "NEW", rs.LoadUserState(ctx, "u1").Strategies[0].Name)
	assert.Equal(t, 1, p.Writes())
}

func TestPersisterStopWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	durable := newGatedKV()
	rs := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
	p := NewPersister(rs, 5*time.Millisecond, zerolog.Nop())

	p.Schedule(namedState("OLD"), SessionPolicy{})
	<-durable.entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(durable.release)
	<-stopped
	assert.Equal(t, "OLD", rs.LoadUserState(ctx, "u1").Strategies[0].Name)
}
