// Package journal holds the state transition function over a user's
// journal and the controller that serializes dispatches and persistence.
package journal

import (
	"tradejournal/internal/models"
	"tradejournal/internal/security"
)

// Action is a state transition request. The set of actions is closed.
type Action interface {
	isAction()
	// Kind is a stable label used in logs.
	Kind() string
}

// TradePatch is a partial trade update. Nil fields are left unchanged.
type TradePatch struct {
	Date                *string
	Pair                *string
	Direction           *models.Direction
	RR                  *float64
	Result              *models.Result
	Pips                *float64
	PnLPercent          *float64
	MaxExcursionPercent *float64
	Notes               *string
}

// touchesSigns reports whether applying p requires re-deriving signs.
func (p TradePatch) touchesSigns() bool {
	return p.Result != nil || p.Pips != nil || p.PnLPercent != nil || p.MaxExcursionPercent != nil
}

// check rejects values a trade cannot hold: a date that is not a day of
// the month, or a number that is not finite.
func (p TradePatch) check() error {
	if p.Date != nil {
		if err := security.ValidateDay(*p.Date); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"rr", p.RR},
		{"pips", p.Pips},
		{"pnlPercent", p.PnLPercent},
		{"maxExcursionPercent", p.MaxExcursionPercent},
	} {
		if f.v == nil {
			continue
		}
		if err := security.ValidateFinite(f.name, *f.v); err != nil {
			return err
		}
	}
	return nil
}

func (p TradePatch) apply(t models.Trade) models.Trade {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Pair != nil {
		t.Pair = *p.Pair
	}
	if p.Direction != nil {
		t.Direction = *p.Direction
	}
	if p.RR != nil {
		t.RR = *p.RR
	}
	if p.Result != nil {
		t.Result = *p.Result
	}
	if p.Pips != nil {
		t.Pips = *p.Pips
	}
	if p.PnLPercent != nil {
		t.PnLPercent = *p.PnLPercent
	}
	if p.MaxExcursionPercent != nil {
		t.MaxExcursionPercent = *p.MaxExcursionPercent
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// UserPatch is a partial profile update.
type UserPatch struct {
	Name       *string
	Email      *string
	AvatarURL  *string
	RememberMe *bool
}

// SettingsPatch is a partial settings update, merged field by field.
type SettingsPatch struct {
	Theme                *models.Theme
	Language             *models.Language
	IsOnboardingComplete *bool
	APIKey               *string
}

// PatchFromSettings returns a patch that sets every field of s.
func PatchFromSettings(s models.Settings) SettingsPatch {
	return SettingsPatch{
		Theme:                &s.Theme,
		Language:             &s.Language,
		IsOnboardingComplete: &s.IsOnboardingComplete,
		APIKey:               &s.APIKey,
	}
}

func (p SettingsPatch) apply(s models.Settings) models.Settings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.IsOnboardingComplete != nil {
		s.IsOnboardingComplete = *p.IsOnboardingComplete
	}
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	return s
}

type (
	// Login attaches an authenticated user.
	Login struct{ User models.User }
	// Logout resets to the default state.
	Logout struct{}
	// UpdateUser merges profile fields into the signed-in user.
	UpdateUser struct{ Patch UserPatch }

	SetTheme           struct{ Theme models.Theme }
	SetLanguage        struct{ Language models.Language }
	SetAPIKey          struct{ Key string }
	CompleteOnboarding struct{}

	// AddStrategy appends a strategy. ID is generated when empty.
	AddStrategy struct {
		ID   string
		Name string
	}
	// UpdateStrategy renames a strategy or replaces its notes.
	UpdateStrategy struct {
		ID    string
		Name  *string
		Notes *string
	}
	DeleteStrategy struct{ ID string }
	// SelectStrategy moves the strategy cursor. A nil ID deselects.
	SelectStrategy struct{ ID *string }

	// AddMonth appends a month to the selected strategy.
	AddMonth struct {
		ID   string
		Name string
	}
	// UpdateMonth edits a month addressed explicitly, so a review that
	// finishes after navigation still lands on the month it was run for.
	UpdateMonth struct {
		StrategyID    string
		MonthID       string
		Name          *string
		Notes         *string
		AIAnalysis    *string
		ClearAnalysis bool
	}
	// DeleteMonth removes a month from the selected strategy.
	DeleteMonth struct{ ID string }
	// SelectMonth moves the month cursor. A nil ID deselects.
	SelectMonth struct{ ID *string }

	// AddTrade appends a trade to the selected month. Fields not set by
	// Patch take defaults.
	AddTrade struct {
		ID    string
		Patch TradePatch
	}
	// UpdateTrade patches a trade in the selected month.
	UpdateTrade struct {
		ID    string
		Patch TradePatch
	}
	// DeleteTrade removes a trade from the selected month.
	DeleteTrade struct{ ID string }

	// LoadState replaces strategies and merges settings.
	LoadState struct {
		Strategies []models.Strategy
		Settings   SettingsPatch
	}
)

func (Login) isAction()              {}
func (Logout) isAction()             {}
func (UpdateUser) isAction()         {}
func (SetTheme) isAction()           {}
func (SetLanguage) isAction()        {}
func (SetAPIKey) isAction()          {}
func (CompleteOnboarding) isAction() {}
func (AddStrategy) isAction()        {}
func (UpdateStrategy) isAction()     {}
func (DeleteStrategy) isAction()     {}
func (SelectStrategy) isAction()     {}
func (AddMonth) isAction()           {}
func (UpdateMonth) isAction()        {}
func (DeleteMonth) isAction()        {}
func (SelectMonth) isAction()        {}
func (AddTrade) isAction()           {}
func (UpdateTrade) isAction()        {}
func (DeleteTrade) isAction()        {}
func (LoadState) isAction()          {}

func (Login) Kind() string              { return "LOGIN" }
func (Logout) Kind() string             { return "LOGOUT" }
func (UpdateUser) Kind() string         { return "UPDATE_USER" }
func (SetTheme) Kind() string           { return "SET_THEME" }
func (SetLanguage) Kind() string        { return "SET_LANGUAGE" }
func (SetAPIKey) Kind() string          { return "SET_API_KEY" }
func (CompleteOnboarding) Kind() string { return "COMPLETE_ONBOARDING" }
func (AddStrategy) Kind() string        { return "ADD_STRATEGY" }
func (UpdateStrategy) Kind() string     { return "UPDATE_STRATEGY" }
func (DeleteStrategy) Kind() string     { return "DELETE_STRATEGY" }
func (SelectStrategy) Kind() string     { return "SELECT_STRATEGY" }
func (AddMonth) Kind() string           { return "ADD_MONTH" }
func (UpdateMonth) Kind() string        { return "UPDATE_MONTH" }
func (DeleteMonth) Kind() string        { return "DELETE_MONTH" }
func (SelectMonth) Kind() string        { return "SELECT_MONTH" }
func (AddTrade) Kind() string           { return "ADD_TRADE" }
func (UpdateTrade) Kind() string        { return "UPDATE_TRADE" }
func (DeleteTrade) Kind() string        { return "DELETE_TRADE" }
func (LoadState) Kind() string          { return "LOAD_STATE" }
