package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"tradejournal/internal/config"
	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/review"
	"tradejournal/internal/security"
	"tradejournal/internal/session"
	"tradejournal/internal/store"
	"tradejournal/pkg/retry"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Records  *store.RecordStore
	Sessions *session.Manager
	Journal  *journal.Controller

	persister *store.Persister
	closers   []io.Closer
}

// Deps are the replaceable parts of an App.
type Deps struct {
	Durable   store.KeyValue
	Transient store.KeyValue
	Narrator  journal.Narrator
	Auditor   security.Auditor
	Session   []session.Option
	Journal   []journal.ControllerOption
}

// Ready reports whether the journal has been opened.
func (a *App) Ready() bool {
	return a.Journal != nil
}

// Open connects the durable and per-terminal databases named by the
// configuration and restores the session.
func (a *App) Open(ctx context.Context) error {
	cfg := a.Config

	durable, err := store.NewSQLiteKV(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening journal database: %w", err)
	}
	a.closers = append(a.closers, durable)

	transient, err := store.NewSQLiteKV(cfg.SessionDBPath())
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	a.closers = append(a.closers, transient)

	deps := Deps{
		Durable:   durable,
		Transient: transient,
		Narrator:  newReviewer(cfg, a.Logger),
	}

	if cfg.Audit.Enabled {
		auditCfg := security.DefaultAuditConfig()
		auditCfg.LogDir = cfg.Audit.Dir
		auditor, err := security.NewAuditLogger(auditCfg)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Audit log unavailable")
		} else {
			deps.Auditor = auditor
			a.closers = append(a.closers, auditor)
		}
	}

	a.Wire(ctx, deps)
	return nil
}

// Wire builds the record store, session manager and controller over deps.
func (a *App) Wire(ctx context.Context, deps Deps) {
	cfg := a.Config
	if cfg == nil {
		cfg = &config.Config{}
		a.Config = cfg
	}

	a.Records = store.NewRecordStore(deps.Durable, deps.Transient, a.Logger)

	sessionOpts := []session.Option{session.WithResetTTL(cfg.Session.ResetCodeTTL)}
	if deps.Auditor != nil {
		sessionOpts = append(sessionOpts, session.WithAuditor(deps.Auditor))
	}
	a.Sessions = session.NewManager(a.Records, a.Logger, append(sessionOpts, deps.Session...)...)

	initial := a.Sessions.Restore(ctx)
	if initial.User != nil {
		a.Logger.Debug().Str("user_id", initial.User.ID).Msg("Session restored")
	}

	a.persister = store.NewPersister(a.Records, cfg.Storage.Debounce, a.Logger)

	journalOpts := []journal.ControllerOption{journal.WithFallbackAPIKey(cfg.Review.APIKey)}
	if deps.Narrator != nil {
		journalOpts = append(journalOpts, journal.WithNarrator(deps.Narrator))
	}
	a.Journal = journal.NewController(initial, a.persister, a.Logger, append(journalOpts, deps.Journal...)...)
}

// Close writes pending state and releases the databases.
func (a *App) Close(ctx context.Context) error {
	var first error
	if a.persister != nil && a.persister.Pending() {
		a.Logger.Debug().Msg("Flushing pending journal state")
	}
	if a.Journal != nil {
		if err := a.Journal.Close(ctx); err != nil {
			first = err
		}
	}
	if a.persister != nil {
		a.persister.Stop()
		a.Logger.Debug().Int("writes", a.persister.Writes()).Msg("Journal closed")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// User returns the signed-in user.
func (a *App) User() (*models.User, error) {
	user := a.Journal.State().User
	if user == nil {
		return nil, jerrors.Wrap(jerrors.ErrNotAuthenticated, "run 'tradejournal login' first")
	}
	return user, nil
}

// Dispatch applies action for the signed-in user, reporting actions that
// do not apply to the current selection.
func (a *App) Dispatch(action journal.Action) (models.AppState, error) {
	if _, err := a.User(); err != nil {
		return models.AppState{}, err
	}
	return a.Journal.DispatchChecked(action)
}

// SignIn opens a session for user and loads their journal into the
// controller. A different user signed in on this terminal is signed out
// first so their pending writes land in their own partition.
func (a *App) SignIn(ctx context.Context, user models.User, remember bool) (models.AppState, error) {
	if current := a.Journal.State().User; current != nil && current.ID != user.ID {
		a.Journal.Dispatch(journal.Logout{})
	}

	state, err := a.Sessions.Open(ctx, user, remember)
	if err != nil {
		return models.AppState{}, err
	}

	a.Journal.Dispatch(journal.Login{User: *state.User})
	return a.Journal.Dispatch(journal.LoadState{
		Strategies: state.Strategies,
		Settings:   journal.PatchFromSettings(state.Settings),
	}), nil
}

// SignOut resets the controller and clears the terminal's session.
func (a *App) SignOut(ctx context.Context) error {
	userID := ""
	if user := a.Journal.State().User; user != nil {
		userID = user.ID
	}
	a.Journal.Dispatch(journal.Logout{})
	return a.Sessions.Logout(ctx, userID)
}

func maskedKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return security.MaskCredential(key)
}

func newReviewer(cfg *config.Config, logger zerolog.Logger) *review.Reviewer {
	backoff := retry.DefaultConfig()
	backoff.MaxAttempts = cfg.Review.MaxAttempts
	return review.NewReviewer(
		review.OpenAIFactory(cfg.Review.Model, cfg.Review.BaseURL),
		cfg.Review.Timeout,
		logger,
		review.WithRetry(backoff),
	)
}
