package review

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/pkg/retry"
)

type fakeClient struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeClient) CompleteWithSystem(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.reply, f.err
}

func newTestReviewer(client *fakeClient) (*Reviewer, *[]string) {
	var keys []string
	factory := func(apiKey string) LLMClient {
		keys = append(keys, apiKey)
		return client
	}
	return NewReviewer(factory, 0, zerolog.Nop(), WithRetry(fastRetry())), &keys
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func sampleMonth() (models.Strategy, models.MonthData) {
	month := models.MonthData{
		ID:    "m1",
		Name:  "March 2024",
		Notes: "FOMC week was choppy",
		Trades: []models.Trade{
			{ID: "t1", Date: "4", Pair: "EURUSD", Direction: models.Long, RR: 2, Result: models.Win, Pips: 20, PnLPercent: 2, MaxExcursionPercent: 2.5},
			{ID: "t2", Date: "6", Pair: "GBPUSD", Direction: models.Short, RR: 3, Result: models.Loss, Pips: -10, PnLPercent: -1, Notes: "early entry"},
		},
	}
	strategy := models.Strategy{ID: "s1", Name: "London breakout", Months: []models.MonthData{month}}
	return strategy, month
}

func TestAnalyzeMonthReturnsNarrative(t *testing.T) {
	client := &fakeClient{reply: "## Overview\nSolid."}
	r, keys := newTestReviewer(client)
	strategy, month := sampleMonth()

	got := r.AnalyzeMonth(context.Background(), strategy, month, " sk-user ")
	assert.Equal(t, "## Overview\nSolid.", got)
	assert.Equal(t, []string{"sk-user"}, *keys)

	assert.Contains(t, client.user, "Strategy Name: London breakout")
	assert.Contains(t, client.user, "Period: March 2024")
	assert.Contains(t, client.user, "FOMC week was choppy")
	assert.Contains(t, client.user, `"PnL %": -1`)
	assert.Contains(t, client.user, `"Max %": 2.5`)
	assert.Contains(t, client.user, "Confidence Score")
	assert.NotEmpty(t, client.system)
}

func TestAnalyzeMonthEmptyResponse(t *testing.T) {
	r, _ := newTestReviewer(&fakeClient{reply: "  "})
	strategy, month := sampleMonth()
	assert.Equal(t, EmptyResponse, r.AnalyzeMonth(context.Background(), strategy, month, "k"))
}

func TestAnalyzeMonthMissingKey(t *testing.T) {
	r, keys := newTestReviewer(&fakeClient{reply: "unused"})
	strategy, month := sampleMonth()

	got := r.AnalyzeMonth(context.Background(), strategy, month, "")
	assert.True(t, strings.HasPrefix(got, "Error:"))
	assert.Contains(t, got, "API key")
	assert.Empty(t, *keys)
}

func TestAnalyzeMonthFailuresBecomeText(t *testing.T) {
	strategy, month := sampleMonth()
	for _, err := range []error{
		&openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
		&net.OpError{Op: "dial", Err: errors.New("refused")},
		errors.New("boom"),
	} {
		r, _ := newTestReviewer(&fakeClient{err: err})
		got := r.AnalyzeMonth(context.Background(), strategy, month, "k")
		assert.True(t, strings.HasPrefix(got, "Error:"), got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want jerrors.NarrativeKind
	}{
		{&openai.APIError{HTTPStatusCode: 400}, jerrors.NarrativeMalformedRequest},
		{&openai.APIError{HTTPStatusCode: 401}, jerrors.NarrativeUnauthorized},
		{fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: 403}), jerrors.NarrativeUnauthorized},
		{&openai.APIError{HTTPStatusCode: 404}, jerrors.NarrativeNotFound},
		{&openai.RequestError{HTTPStatusCode: 404}, jerrors.NarrativeNotFound},
		{&openai.APIError{HTTPStatusCode: 500}, jerrors.NarrativeUnknown},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, jerrors.NarrativeNetwork},
		{context.DeadlineExceeded, jerrors.NarrativeNetwork},
		{jerrors.NewNarrativeError(jerrors.NarrativeMissingCredential, jerrors.ErrMissingAPIKey), jerrors.NarrativeMissingCredential},
		{errors.New("something else"), jerrors.NarrativeUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err).Kind, tc.err.Error())
	}
}

func TestMessagesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range []jerrors.NarrativeKind{
		jerrors.NarrativeMissingCredential, jerrors.NarrativeNotFound, jerrors.NarrativeMalformedRequest,
		jerrors.NarrativeUnauthorized, jerrors.NarrativeNetwork, jerrors.NarrativeUnknown,
	} {
		msg := Message(jerrors.NewNarrativeError(kind, nil))
		require.NotEmpty(t, msg)
		assert.False(t, seen[msg], kind)
		seen[msg] = true
	}
}

func TestBuildPromptEmptyMonth(t *testing.T) {
	prompt, err := BuildPrompt(models.Strategy{Name: "Empty"}, models.MonthData{Name: "April"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "[]")
	assert.Contains(t, prompt, "Trades: 0")
}

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) CompleteWithSystem(context.Context, string, string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "recovered", nil
}

func TestAnalyzeMonthRetriesTransientFailures(t *testing.T) {
	client := &flakyClient{errs: []error{
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		&openai.APIError{HTTPStatusCode: 503, Message: "overloaded"},
	}}
	r := NewReviewer(func(string) LLMClient { return client }, 0, zerolog.Nop(), WithRetry(fastRetry()))
	strategy, month := sampleMonth()

	assert.Equal(t, "recovered", r.AnalyzeMonth(context.Background(), strategy, month, "k"))
	assert.Equal(t, 3, client.calls)
}

func TestAnalyzeMonthDoesNotRetryPermanentFailures(t *testing.T) {
	client := &flakyClient{errs: []error{&openai.APIError{HTTPStatusCode: 401, Message: "bad key"}}}
	r := NewReviewer(func(string) LLMClient { return client }, 0, zerolog.Nop(), WithRetry(fastRetry()))
	strategy, month := sampleMonth()

	got := r.AnalyzeMonth(context.Background(), strategy, month, "k")
	assert.True(t, Failed(got))
	assert.Equal(t, 1, client.calls)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, Transient(&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}))
	assert.True(t, Transient(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, Transient(&openai.APIError{HTTPStatusCode: 400}))
	assert.False(t, Transient(context.DeadlineExceeded))
	assert.False(t, Transient(errors.New("boom")))
}

func TestAnalyzeMonthMasksCredentialsInNotes(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	r, _ := newTestReviewer(client)
	strategy, month := sampleMonth()
	month.Notes = "broker key sk-abcdefghijklmnopqrstuvwxyz123456 pasted by mistake"

	require.Equal(t, "ok", r.AnalyzeMonth(context.Background(), strategy, month, "k"))
	assert.NotContains(t, client.user, "sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.Contains(t, client.user, "pasted by mistake")
}
