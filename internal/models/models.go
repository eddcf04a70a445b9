// Package models provides domain models for the trading journal.
package models

// Direction represents the side of a logged trade.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Result represents the outcome of a trade.
type Result string

const (
	Win       Result = "Win"
	Loss      Result = "Loss"
	BreakEven Result = "BE"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	return r == Win || r == Loss || r == BreakEven
}

// Theme represents the display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Language represents the display language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFarsi   Language = "fa"
)

// AuthProvider identifies how a user authenticates.
type AuthProvider string

const (
	AuthLocal    AuthProvider = "local"
	AuthExternal AuthProvider = "external"
)

// Settings holds per-user preferences.
type Settings struct {
	Theme                Theme    `json:"theme" yaml:"theme"`
	Language             Language `json:"language" yaml:"language"`
	IsOnboardingComplete bool     `json:"isOnboardingComplete" yaml:"isOnboardingComplete"`
	APIKey               string   `json:"apiKey,omitempty" yaml:"-"`
}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Theme:    ThemeDark,
		Language: LanguageEnglish,
	}
}

// View identifies which level of the strategy tree is being viewed.
type View string

const (
	ViewStrategyList View = "strategy_list"
	ViewMonthList    View = "month_list"
	ViewMonthDetail  View = "month_detail"
)

// AppState is the per-user root of all journal data.
type AppState struct {
	User              *User      `json:"user"`
	Strategies        []Strategy `json:"strategies"`
	CurrentStrategyID *string    `json:"currentStrategyId"`
	CurrentMonthID    *string    `json:"currentMonthId"`
	Settings          Settings   `json:"settings"`
}

// DefaultState returns the logged-out initial state.
func DefaultState() AppState {
	return AppState{
		Strategies: []Strategy{},
		Settings:   DefaultSettings(),
	}
}

// View returns the navigation level selected by the cursors.
func (s AppState) View() View {
	switch {
	case s.CurrentStrategyID == nil:
		return ViewStrategyList
	case s.CurrentMonthID == nil:
		return ViewMonthList
	default:
		return ViewMonthDetail
	}
}

// FindStrategy returns the strategy with the given id.
func (s AppState) FindStrategy(id string) (*Strategy, bool) {
	for i := range s.Strategies {
		if s.Strategies[i].ID == id {
			return &s.Strategies[i], true
		}
	}
	return nil, false
}

// CurrentStrategy returns the strategy selected by the strategy cursor.
func (s AppState) CurrentStrategy() (*Strategy, bool) {
	if s.CurrentStrategyID == nil {
		return nil, false
	}
	return s.FindStrategy(*s.CurrentStrategyID)
}

// CurrentMonth returns the month selected by both cursors.
func (s AppState) CurrentMonth() (*MonthData, bool) {
	strategy, ok := s.CurrentStrategy()
	if !ok || s.CurrentMonthID == nil {
		return nil, false
	}
	return strategy.FindMonth(*s.CurrentMonthID)
}

// StringPtr returns a pointer to a copy of v.
func StringPtr(v string) *string {
	return &v
}
