package journal

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/store"
)

// Narrator produces a performance review for one month. Failures are
// returned as readable text, never as errors.
type Narrator interface {
	AnalyzeMonth(ctx context.Context, strategy models.Strategy, month models.MonthData, apiKey string) string
}

// Controller owns the live state of one process. Dispatches are serialized;
// every change is handed to the persister.
type Controller struct {
	mu        sync.Mutex
	state     models.AppState
	reducer   Reducer
	persister *store.Persister
	narrator  Narrator
	apiKey    string
	logger    zerolog.Logger

	reviewing bool
	reviews   sync.WaitGroup
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithReducer overrides the id source and clock used for new records.
func WithReducer(r Reducer) ControllerOption {
	return func(c *Controller) { c.reducer = r }
}

// WithNarrator sets the review generator.
func WithNarrator(n Narrator) ControllerOption {
	return func(c *Controller) { c.narrator = n }
}

// WithFallbackAPIKey sets the key used when the user has none in settings.
func WithFallbackAPIKey(key string) ControllerOption {
	return func(c *Controller) { c.apiKey = key }
}

// NewController creates a controller starting from initial.
func NewController(initial models.AppState, persister *store.Persister, logger zerolog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		state:     initial,
		reducer:   defaultReducer,
		persister: persister,
		logger:    logger.With().Str("component", "journal").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state. Callers must treat it as read-only.
func (c *Controller) State() models.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch applies action and schedules persistence. Actions that do not
// apply to the current navigation state are absorbed silently.
func (c *Controller) Dispatch(action Action) models.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(action)
}

// DispatchChecked is Dispatch that reports ErrInvalidState instead of
// absorbing actions the reducer would ignore.
func (c *Controller) DispatchChecked(action Action) (models.AppState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := Validate(c.state, action); err != nil {
		return c.state, err
	}
	return c.dispatchLocked(action), nil
}

func (c *Controller) dispatchLocked(action Action) models.AppState {
	prev := c.state
	next := c.reducer.Reduce(prev, action)
	c.state = next

	c.logger.Debug().Str("action", action.Kind()).Str("view", string(next.View())).Msg("Dispatched")

	if c.persister == nil {
		return next
	}
	// A pending write for a user who is leaving must land before it can be
	// replaced by the next user's state.
	if prev.User != nil && (next.User == nil || next.User.ID != prev.User.ID) {
		if err := c.persister.Flush(context.Background()); err != nil {
			c.logger.Error().Err(err).Str("user_id", prev.User.ID).Msg("Failed to flush state on user change")
		}
	}
	if next.User != nil {
		c.persister.Schedule(next, store.PolicyFor(next))
	}
	return next
}

// Reviewing reports whether a review request is in flight.
func (c *Controller) Reviewing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reviewing
}

// StartReview requests a review of the selected month in the background.
// The result, narrative or error text, is written to the month that was
// selected when the request started and is also sent on the returned
// channel. Only one review runs at a time.
func (c *Controller) StartReview(ctx context.Context) (<-chan string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.narrator == nil {
		return nil, jerrors.Wrap(jerrors.ErrMissingAPIKey, "review not configured")
	}
	if c.reviewing {
		return nil, jerrors.ErrReviewInProgress
	}
	strategy, ok := c.state.CurrentStrategy()
	if !ok {
		return nil, jerrors.Wrap(jerrors.ErrInvalidState, "no strategy selected")
	}
	month, ok := c.state.CurrentMonth()
	if !ok {
		return nil, jerrors.Wrap(jerrors.ErrInvalidState, "no month selected")
	}

	apiKey := c.state.Settings.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}
	strategyCopy, monthCopy := *strategy, *month

	c.reviewing = true
	c.reviews.Add(1)
	out := make(chan string, 1)

	go func() {
		defer c.reviews.Done()

		c.logger.Info().Str("strategy_id", strategyCopy.ID).Str("month_id", monthCopy.ID).Msg("Review started")
		text := c.narrator.AnalyzeMonth(ctx, strategyCopy, monthCopy, apiKey)

		c.mu.Lock()
		c.dispatchLocked(UpdateMonth{StrategyID: strategyCopy.ID, MonthID: monthCopy.ID, AIAnalysis: &text})
		c.reviewing = false
		c.mu.Unlock()

		out <- text
		close(out)
	}()

	return out, nil
}

// Close waits for a running review and writes any pending state.
func (c *Controller) Close(ctx context.Context) error {
	c.reviews.Wait()
	if c.persister == nil {
		return nil
	}
	return c.persister.Flush(ctx)
}
