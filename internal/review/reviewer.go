package review

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/security"
	"tradejournal/pkg/retry"
)

// EmptyResponse is returned when the model answers with no text.
const EmptyResponse = "No analysis generated."

// Reviewer turns a month of trades into a written review.
type Reviewer struct {
	factory ClientFactory
	timeout time.Duration
	retry   retry.Config
	logger  zerolog.Logger
}

// ReviewerOption configures a Reviewer.
type ReviewerOption func(*Reviewer)

// WithRetry overrides the backoff used for transient failures. The
// retryable predicate is always Transient.
func WithRetry(cfg retry.Config) ReviewerOption {
	return func(r *Reviewer) { r.retry = cfg }
}

// NewReviewer creates a reviewer. A zero timeout leaves the deadline to ctx.
// The timeout covers every attempt of one review.
func NewReviewer(factory ClientFactory, timeout time.Duration, logger zerolog.Logger, opts ...ReviewerOption) *Reviewer {
	r := &Reviewer{
		factory: factory,
		timeout: timeout,
		retry:   retry.DefaultConfig(),
		logger:  logger.With().Str("component", "review").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.retry.Retryable = Transient
	return r
}

// AnalyzeMonth returns the review text, or a readable error message in its
// place. It never returns an error.
func (r *Reviewer) AnalyzeMonth(ctx context.Context, strategy models.Strategy, month models.MonthData, apiKey string) string {
	text, err := r.analyze(ctx, strategy, month, apiKey)
	if err != nil {
		nerr := Classify(err)
		r.logger.Warn().
			Str("kind", string(nerr.Kind)).
			Str("month_id", month.ID).
			Str("error", security.MaskSensitive(err.Error())).
			Msg("Review failed")
		return Message(nerr)
	}
	return text
}

func (r *Reviewer) analyze(ctx context.Context, strategy models.Strategy, month models.MonthData, apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", jerrors.NewNarrativeError(jerrors.NarrativeMissingCredential, jerrors.ErrMissingAPIKey)
	}

	prompt, err := BuildPrompt(strategy, month)
	if err != nil {
		return "", jerrors.NewNarrativeError(jerrors.NarrativeMalformedRequest, err)
	}
	// Notes are free text and leave the machine with the request.
	if security.ContainsSensitiveData(prompt) {
		r.logger.Warn().Str("month_id", month.ID).Msg("Masked credentials found in journal notes")
		prompt = security.MaskSensitive(prompt)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	client := r.factory(apiKey)
	start := time.Now()
	attempts := 0
	text, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		attempts++
		if attempts > 1 {
			r.logger.Debug().Int("attempt", attempts).Str("month_id", month.ID).Msg("Retrying review")
		}
		return client.CompleteWithSystem(ctx, systemPrompt, prompt)
	})
	if err != nil {
		return "", err
	}
	r.logger.Info().
		Str("month_id", month.ID).
		Int("trades", len(month.Trades)).
		Int("attempts", attempts).
		Dur("latency", time.Since(start)).
		Msg("Review generated")

	if strings.TrimSpace(text) == "" {
		return EmptyResponse, nil
	}
	return text, nil
}

// Classify maps a failure onto a narrative error kind.
func Classify(err error) *jerrors.NarrativeError {
	var nerr *jerrors.NarrativeError
	if errors.As(err, &nerr) {
		return nerr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return jerrors.NewNarrativeError(kindForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return jerrors.NewNarrativeError(kindForStatus(reqErr.HTTPStatusCode), err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return jerrors.NewNarrativeError(jerrors.NarrativeNetwork, err)
	}
	return jerrors.NewNarrativeError(jerrors.NarrativeUnknown, err)
}

// Transient reports whether a failed completion may succeed if repeated:
// connection failures, rate limiting and server errors. An expired deadline
// is final.
func Transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return Classify(err).Kind == jerrors.NarrativeNetwork
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

func kindForStatus(code int) jerrors.NarrativeKind {
	switch code {
	case 400:
		return jerrors.NarrativeMalformedRequest
	case 401, 403:
		return jerrors.NarrativeUnauthorized
	case 404:
		return jerrors.NarrativeNotFound
	}
	return jerrors.NarrativeUnknown
}

// Message returns the text shown in place of a review for a failure.
func Message(err *jerrors.NarrativeError) string {
	switch err.Kind {
	case jerrors.NarrativeMissingCredential:
		return "Error: No API key configured. Add one with `tradejournal settings api-key` or set OPENAI_API_KEY."
	case jerrors.NarrativeNotFound:
		return "Error: The review model was not found. Check the model name in your configuration."
	case jerrors.NarrativeMalformedRequest:
		return "Error: The review request was rejected as invalid. Try again with fewer or shorter notes."
	case jerrors.NarrativeUnauthorized:
		return "Error: The API key was rejected. Check that it is valid and has access to the model."
	case jerrors.NarrativeNetwork:
		return "Error: Could not reach the review service. Check your connection and try again."
	}
	return "Error: Failed to generate analysis. Please check your connection and API limits."
}

// Failed reports whether text is an error message returned in place of a
// review.
func Failed(text string) bool {
	return strings.HasPrefix(text, "Error: ")
}
