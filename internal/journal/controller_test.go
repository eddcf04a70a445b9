package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/store"
)

type fakeNarrator struct {
	mu      sync.Mutex
	release chan struct{}
	keys    []string
	months  []string
	reply   string
}

func (f *fakeNarrator) AnalyzeMonth(ctx context.Context, strategy models.Strategy, month models.MonthData, apiKey string) string {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, apiKey)
	f.months = append(f.months, month.ID)
	return f.reply
}

func newTestController(t *testing.T, opts ...ControllerOption) (*Controller, *store.RecordStore) {
	t.Helper()
	rs := store.NewRecordStore(store.NewMemoryKV(), store.NewMemoryKV(), zerolog.Nop())
	p := store.NewPersister(rs, time.Hour, zerolog.Nop())
	opts = append([]ControllerOption{WithReducer(testReducer())}, opts...)
	return NewController(models.DefaultState(), p, zerolog.Nop(), opts...), rs
}

func signInWithMonth(c *Controller) {
	c.Dispatch(Login{User: models.User{ID: "u1", Name: "Ana"}})
	c.Dispatch(AddStrategy{ID: "s1", Name: "London open"})
	c.Dispatch(SelectStrategy{ID: ptr("s1")})
	c.Dispatch(AddMonth{ID: "m1", Name: "March 2024"})
	c.Dispatch(SelectMonth{ID: ptr("m1")})
}

func TestControllerPersistsOnClose(t *testing.T) {
	ctx := context.Background()
	c, rs := newTestController(t)
	signInWithMonth(c)
	c.Dispatch(AddTrade{ID: "t1"})

	assert.Empty(t, rs.LoadUserState(ctx, "u1").Strategies)

	require.NoError(t, c.Close(ctx))
	saved := rs.LoadUserState(ctx, "u1")
	require.Len(t, saved.Strategies, 1)
	assert.Len(t, saved.Strategies[0].Months[0].Trades, 1)

	id, ok := rs.ActiveUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestControllerFlushesBeforeLogout(t *testing.T) {
	ctx := context.Background()
	c, rs := newTestController(t)
	signInWithMonth(c)

	c.Dispatch(Logout{})
	require.NoError(t, c.Close(ctx))

	assert.Nil(t, c.State().User)
	assert.Len(t, rs.LoadUserState(ctx, "u1").Strategies, 1)
}

func TestDispatchCheckedReportsInvalidState(t *testing.T) {
	c, _ := newTestController(t)
	c.Dispatch(Login{User: models.User{ID: "u1"}})

	before := c.State()
	after, err := c.DispatchChecked(AddTrade{})
	assert.ErrorIs(t, err, jerrors.ErrInvalidState)
	assert.Equal(t, before, after)

	_, err = c.DispatchChecked(AddStrategy{ID: "s1", Name: "ok"})
	assert.NoError(t, err)
	assert.Len(t, c.State().Strategies, 1)
}

func TestStartReviewWritesToOriginatingMonth(t *testing.T) {
	ctx := context.Background()
	narrator := &fakeNarrator{release: make(chan struct{}), reply: "Solid execution."}
	c, _ := newTestController(t, WithNarrator(narrator), WithFallbackAPIKey("env-key"))
	signInWithMonth(c)

	done, err := c.StartReview(ctx)
	require.NoError(t, err)
	assert.True(t, c.Reviewing())

	_, err = c.StartReview(ctx)
	assert.ErrorIs(t, err, jerrors.ErrReviewInProgress)

	// Navigate away before the review returns.
	c.Dispatch(SelectStrategy{ID: nil})
	close(narrator.release)

	assert.Equal(t, "Solid execution.", <-done)
	assert.False(t, c.Reviewing())

	m, ok := c.State().Strategies[0].FindMonth("m1")
	require.True(t, ok)
	require.NotNil(t, m.AIAnalysis)
	assert.Equal(t, "Solid execution.", *m.AIAnalysis)
	assert.Equal(t, []string{"env-key"}, narrator.keys)
	require.NoError(t, c.Close(ctx))
}

func TestStartReviewPrefersUserKey(t *testing.T) {
	ctx := context.Background()
	narrator := &fakeNarrator{reply: "ok"}
	c, _ := newTestController(t, WithNarrator(narrator), WithFallbackAPIKey("env-key"))
	signInWithMonth(c)
	c.Dispatch(SetAPIKey{Key: "user-key"})

	done, err := c.StartReview(ctx)
	require.NoError(t, err)
	<-done
	assert.Equal(t, []string{"user-key"}, narrator.keys)
}

func TestStartReviewNeedsMonth(t *testing.T) {
	c, _ := newTestController(t, WithNarrator(&fakeNarrator{}))
	c.Dispatch(Login{User: models.User{ID: "u1"}})

	_, err := c.StartReview(context.Background())
	assert.ErrorIs(t, err, jerrors.ErrInvalidState)
}
