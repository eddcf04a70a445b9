package journal

import (
	"strconv"
	"strings"
	"time"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/stats"
	"tradejournal/pkg/id"
)

// DefaultPair is the instrument of the first trade in an empty month.
const DefaultPair = "EURUSD"

// DefaultRR is the planned risk:reward of a new trade.
const DefaultRR = 2

// Reducer computes state transitions. Its only inputs besides the state and
// action are the id source and clock used for new records.
type Reducer struct {
	NewID func() string
	Now   func() time.Time
}

var defaultReducer = Reducer{NewID: id.New, Now: time.Now}

// Reduce applies action to state with the default id source and clock.
func Reduce(state models.AppState, action Action) models.AppState {
	return defaultReducer.Reduce(state, action)
}

// Reduce returns the state after action. The input is never mutated: only
// the strategy, month and trade slices on the touched path are copied,
// everything else is shared. Actions that do not apply to the current
// navigation state return state unchanged.
func (r Reducer) Reduce(state models.AppState, action Action) models.AppState {
	switch a := action.(type) {
	case Login:
		user := a.User
		state.User = &user
		return state

	case Logout:
		return models.DefaultState()

	case UpdateUser:
		if state.User == nil {
			return state
		}
		user := *state.User
		if a.Patch.Name != nil {
			user.Name = *a.Patch.Name
		}
		if a.Patch.Email != nil {
			user.Email = *a.Patch.Email
		}
		if a.Patch.AvatarURL != nil {
			user.AvatarURL = *a.Patch.AvatarURL
		}
		if a.Patch.RememberMe != nil {
			user.RememberMe = *a.Patch.RememberMe
		}
		state.User = &user
		return state

	case SetTheme:
		state.Settings.Theme = a.Theme
		return state

	case SetLanguage:
		state.Settings.Language = a.Language
		return state

	case SetAPIKey:
		state.Settings.APIKey = strings.TrimSpace(a.Key)
		return state

	case CompleteOnboarding:
		state.Settings.IsOnboardingComplete = true
		return state

	case AddStrategy:
		strategy := models.Strategy{
			ID:     r.idOr(a.ID),
			Name:   strings.TrimSpace(a.Name),
			Months: []models.MonthData{},
		}
		strategies := make([]models.Strategy, len(state.Strategies), len(state.Strategies)+1)
		copy(strategies, state.Strategies)
		state.Strategies = append(strategies, strategy)
		return state

	case UpdateStrategy:
		si := strategyIndex(state.Strategies, a.ID)
		if si < 0 {
			return state
		}
		state.Strategies = replaceStrategy(state.Strategies, si, func(s models.Strategy) models.Strategy {
			if a.Name != nil {
				s.Name = strings.TrimSpace(*a.Name)
			}
			if a.Notes != nil {
				s.Notes = *a.Notes
			}
			return s
		})
		return state

	case DeleteStrategy:
		si := strategyIndex(state.Strategies, a.ID)
		if si < 0 {
			return state
		}
		state.Strategies = removeAt(state.Strategies, si)
		if cursorIs(state.CurrentStrategyID, a.ID) {
			state.CurrentStrategyID = nil
			state.CurrentMonthID = nil
		}
		return state

	case SelectStrategy:
		if a.ID == nil {
			state.CurrentStrategyID = nil
			state.CurrentMonthID = nil
			return state
		}
		if strategyIndex(state.Strategies, *a.ID) < 0 {
			return state
		}
		state.CurrentStrategyID = models.StringPtr(*a.ID)
		state.CurrentMonthID = nil
		return state

	case AddMonth:
		si := currentStrategyIndex(state)
		if si < 0 {
			return state
		}
		month := models.MonthData{
			ID:     r.idOr(a.ID),
			Name:   strings.TrimSpace(a.Name),
			Trades: []models.Trade{},
		}
		state.Strategies = replaceStrategy(state.Strategies, si, func(s models.Strategy) models.Strategy {
			months := make([]models.MonthData, len(s.Months), len(s.Months)+1)
			copy(months, s.Months)
			s.Months = append(months, month)
			return s
		})
		return state

	case UpdateMonth:
		si := strategyIndex(state.Strategies, a.StrategyID)
		if si < 0 {
			return state
		}
		mi := monthIndex(state.Strategies[si].Months, a.MonthID)
		if mi < 0 {
			return state
		}
		state.Strategies = replaceMonth(state.Strategies, si, mi, func(m models.MonthData) models.MonthData {
			if a.Name != nil {
				m.Name = strings.TrimSpace(*a.Name)
			}
			if a.Notes != nil {
				m.Notes = *a.Notes
			}
			if a.ClearAnalysis {
				m.AIAnalysis = nil
			} else if a.AIAnalysis != nil {
				m.AIAnalysis = models.StringPtr(*a.AIAnalysis)
			}
			return m
		})
		return state

	case DeleteMonth:
		si := currentStrategyIndex(state)
		if si < 0 {
			return state
		}
		mi := monthIndex(state.Strategies[si].Months, a.ID)
		if mi < 0 {
			return state
		}
		state.Strategies = replaceStrategy(state.Strategies, si, func(s models.Strategy) models.Strategy {
			s.Months = removeAt(s.Months, mi)
			return s
		})
		if cursorIs(state.CurrentMonthID, a.ID) {
			state.CurrentMonthID = nil
		}
		return state

	case SelectMonth:
		if a.ID == nil {
			state.CurrentMonthID = nil
			return state
		}
		si := currentStrategyIndex(state)
		if si < 0 || monthIndex(state.Strategies[si].Months, *a.ID) < 0 {
			return state
		}
		state.CurrentMonthID = models.StringPtr(*a.ID)
		return state

	case AddTrade:
		si, mi := currentMonthIndex(state)
		if mi < 0 {
			return state
		}
		if a.Patch.check() != nil {
			return state
		}
		trade := r.newTrade(a.ID, state.Strategies[si].Months[mi].Trades)
		trade = stats.NormalizeTrade(a.Patch.apply(trade))
		state.Strategies = replaceMonth(state.Strategies, si, mi, func(m models.MonthData) models.MonthData {
			trades := make([]models.Trade, len(m.Trades), len(m.Trades)+1)
			copy(trades, m.Trades)
			m.Trades = append(trades, trade)
			return m
		})
		return state

	case UpdateTrade:
		si, mi := currentMonthIndex(state)
		if mi < 0 {
			return state
		}
		ti := tradeIndex(state.Strategies[si].Months[mi].Trades, a.ID)
		if ti < 0 || a.Patch.check() != nil {
			return state
		}
		state.Strategies = replaceMonth(state.Strategies, si, mi, func(m models.MonthData) models.MonthData {
			trades := make([]models.Trade, len(m.Trades))
			copy(trades, m.Trades)
			t := a.Patch.apply(trades[ti])
			if a.Patch.touchesSigns() {
				t = stats.NormalizeTrade(t)
			}
			trades[ti] = t
			m.Trades = trades
			return m
		})
		return state

	case DeleteTrade:
		si, mi := currentMonthIndex(state)
		if mi < 0 {
			return state
		}
		ti := tradeIndex(state.Strategies[si].Months[mi].Trades, a.ID)
		if ti < 0 {
			return state
		}
		state.Strategies = replaceMonth(state.Strategies, si, mi, func(m models.MonthData) models.MonthData {
			m.Trades = removeAt(m.Trades, ti)
			return m
		})
		return state

	case LoadState:
		if a.Strategies == nil {
			state.Strategies = []models.Strategy{}
		} else {
			state.Strategies = a.Strategies
		}
		state.Settings = a.Settings.apply(state.Settings)
		return state
	}

	return state
}

// Validate reports ErrInvalidState when Reduce would absorb action as a
// no-op because the cursors or target ids do not resolve, and
// ErrInputValidation when a trade patch holds a value a trade cannot store.
func Validate(state models.AppState, action Action) error {
	invalid := func(reason string) error {
		return jerrors.Wrapf(jerrors.ErrInvalidState, "%s: %s", action.Kind(), reason)
	}

	switch a := action.(type) {
	case UpdateUser:
		if state.User == nil {
			return invalid("no signed-in user")
		}
	case UpdateStrategy:
		if strategyIndex(state.Strategies, a.ID) < 0 {
			return invalid("unknown strategy " + a.ID)
		}
	case DeleteStrategy:
		if strategyIndex(state.Strategies, a.ID) < 0 {
			return invalid("unknown strategy " + a.ID)
		}
	case SelectStrategy:
		if a.ID != nil && strategyIndex(state.Strategies, *a.ID) < 0 {
			return invalid("unknown strategy " + *a.ID)
		}
	case AddMonth:
		if currentStrategyIndex(state) < 0 {
			return invalid("no strategy selected")
		}
	case UpdateMonth:
		si := strategyIndex(state.Strategies, a.StrategyID)
		if si < 0 {
			return invalid("unknown strategy " + a.StrategyID)
		}
		if monthIndex(state.Strategies[si].Months, a.MonthID) < 0 {
			return invalid("unknown month " + a.MonthID)
		}
	case DeleteMonth:
		si := currentStrategyIndex(state)
		if si < 0 {
			return invalid("no strategy selected")
		}
		if monthIndex(state.Strategies[si].Months, a.ID) < 0 {
			return invalid("unknown month " + a.ID)
		}
	case SelectMonth:
		if a.ID == nil {
			return nil
		}
		si := currentStrategyIndex(state)
		if si < 0 {
			return invalid("no strategy selected")
		}
		if monthIndex(state.Strategies[si].Months, *a.ID) < 0 {
			return invalid("unknown month " + *a.ID)
		}
	case AddTrade:
		if _, mi := currentMonthIndex(state); mi < 0 {
			return invalid("no month selected")
		}
		return a.Patch.check()
	case UpdateTrade:
		if err := validateTradeTarget(state, a.ID, invalid); err != nil {
			return err
		}
		return a.Patch.check()
	case DeleteTrade:
		return validateTradeTarget(state, a.ID, invalid)
	}
	return nil
}

func validateTradeTarget(state models.AppState, tradeID string, invalid func(string) error) error {
	si, mi := currentMonthIndex(state)
	if mi < 0 {
		return invalid("no month selected")
	}
	if tradeIndex(state.Strategies[si].Months[mi].Trades, tradeID) < 0 {
		return invalid("unknown trade " + tradeID)
	}
	return nil
}

func (r Reducer) newTrade(tradeID string, existing []models.Trade) models.Trade {
	pair := DefaultPair
	if n := len(existing); n > 0 {
		pair = existing[n-1].Pair
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return models.Trade{
		ID:        r.idOr(tradeID),
		Date:      strconv.Itoa(now().Day()),
		Pair:      pair,
		Direction: models.Long,
		RR:        DefaultRR,
		Result:    models.BreakEven,
	}
}

func (r Reducer) idOr(given string) string {
	if given != "" {
		return given
	}
	if r.NewID != nil {
		return r.NewID()
	}
	return id.New()
}

func cursorIs(cursor *string, target string) bool {
	return cursor != nil && *cursor == target
}

func currentStrategyIndex(state models.AppState) int {
	if state.CurrentStrategyID == nil {
		return -1
	}
	return strategyIndex(state.Strategies, *state.CurrentStrategyID)
}

func currentMonthIndex(state models.AppState) (int, int) {
	si := currentStrategyIndex(state)
	if si < 0 || state.CurrentMonthID == nil {
		return si, -1
	}
	return si, monthIndex(state.Strategies[si].Months, *state.CurrentMonthID)
}

func strategyIndex(strategies []models.Strategy, id string) int {
	for i := range strategies {
		if strategies[i].ID == id {
			return i
		}
	}
	return -1
}

func monthIndex(months []models.MonthData, id string) int {
	for i := range months {
		if months[i].ID == id {
			return i
		}
	}
	return -1
}

func tradeIndex(trades []models.Trade, id string) int {
	for i := range trades {
		if trades[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceStrategy(strategies []models.Strategy, i int, fn func(models.Strategy) models.Strategy) []models.Strategy {
	out := make([]models.Strategy, len(strategies))
	copy(out, strategies)
	out[i] = fn(out[i])
	return out
}

func replaceMonth(strategies []models.Strategy, si, mi int, fn func(models.MonthData) models.MonthData) []models.Strategy {
	return replaceStrategy(strategies, si, func(s models.Strategy) models.Strategy {
		months := make([]models.MonthData, len(s.Months))
		copy(months, s.Months)
		months[mi] = fn(months[mi])
		s.Months = months
		return s
	})
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
