package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/internal/infrastructure/resilience"
	"jan-server/services/grant-scout/internal/infrastructure/scraper"
	"jan-server/services/grant-scout/utils/grantid"
	"jan-server/services/grant-scout/utils/platformerrors"
)

type fakeCompletions struct {
	calls    atomic.Int32
	requests []openai.ChatCompletionRequest
	respond  func(call int32) (int, string)
}

func (f *fakeCompletions) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)

		status, content := f.respond(f.calls.Add(1))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(content))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}
}

func newTestClient(t *testing.T, fake *fakeCompletions) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	retry := resilience.DefaultRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = 5 * time.Millisecond
	breaker := resilience.DefaultCircuitBreakerConfig()
	breaker.Enabled = false

	client := NewClient(ClientConfig{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Retry:   retry,
		Breaker: breaker,
	})
	client.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return client
}

func TestSearchGrantsAssignsIdentity(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusOK, `{"grants":[{"name":"Solar Fund","organization":"Energy Agency","amount":5000},{"name":"","organization":"nameless"}]}`
	}}
	client := newTestClient(t, fake)

	grants, err := client.SearchGrants(context.Background(), "solar", "energy")
	require.NoError(t, err)
	require.Len(t, grants, 1)

	g := grants[0]
	prefix, _, err := grantid.Parse(g.ID)
	require.NoError(t, err)
	assert.Equal(t, grantid.PrefixGenerated, prefix)
	assert.Equal(t, "Solar Fund", g.Name)
	assert.Equal(t, "5000", g.Amount)
	assert.Equal(t, "energy", g.Category)
	assert.Equal(t, SourceGenerative, g.Source)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), g.CreatedAt)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "test-model", req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.Contains(t, req.Messages[1].Content, "Request: solar")
	assert.Contains(t, req.Messages[1].Content, "category: energy")
}

func TestSearchGrantsWebUsesWebIdentity(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusOK, "```json\n[{\"name\":\"Green Start\",\"category\":\"climate\"}]\n```"
	}}
	client := newTestClient(t, fake)

	grants, err := client.SearchGrantsWeb(context.Background(), "startups", "")
	require.NoError(t, err)
	require.Len(t, grants, 1)

	prefix, _, err := grantid.Parse(grants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, grantid.PrefixWeb, prefix)
	assert.Equal(t, SourceGenerativeWeb, grants[0].Source)
	assert.Equal(t, "climate", grants[0].Category)
}

func TestExtractGrantsAttributesSite(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusOK, `{"grants":[{"name":"Rooftop Solar"}]}`
	}}
	client := newTestClient(t, fake)

	pages := []scraper.Page{{URL: "https://example.org/solar", Title: "Solar", Content: "Rooftop solar subsidy"}}
	grants, err := client.ExtractGrants(context.Background(), "example", "solar", pages)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "web: example", grants[0].Source)
	assert.Equal(t, "https://example.org/solar", grants[0].URL)
	assert.Contains(t, fake.requests[0].Messages[1].Content, "Rooftop solar subsidy")

	none, err := client.ExtractGrants(context.Background(), "example", "solar", nil)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	fake := &fakeCompletions{respond: func(call int32) (int, string) {
		if call == 1 {
			return http.StatusServiceUnavailable, `{"error":"overloaded"}`
		}
		return http.StatusOK, `{"grants":[]}`
	}}
	client := newTestClient(t, fake)

	grants, err := client.SearchGrants(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Empty(t, grants)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestCompleteFailureIsSourceError(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusBadRequest, `{"error":"bad model"}`
	}}
	client := newTestClient(t, fake)

	_, err := client.SearchGrants(context.Background(), "anything", "")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeSource))
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestUnparseableOutputIsSourceError(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusOK, "I could not find anything."
	}}
	client := newTestClient(t, fake)

	_, err := client.SearchGrants(context.Background(), "anything", "")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeSource))
}

func TestSummarize(t *testing.T) {
	fake := &fakeCompletions{respond: func(int32) (int, string) {
		return http.StatusOK, "```markdown\n# Energy grants\n\n## Solar Fund\n```"
	}}
	client := newTestClient(t, fake)

	md, err := client.Summarize(context.Background(), summary.Input{
		Title:             "Energy grants",
		Grants:            []grant.Grant{{ID: "a", Fields: grant.Fields{Name: "Solar Fund"}}},
		IncludeIntro:      false,
		IncludeConclusion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Energy grants\n\n## Solar Fund", md)

	req := fake.requests[0]
	assert.Nil(t, req.ResponseFormat)
	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "Do not write an introduction")
	assert.Contains(t, prompt, "Finish with a conclusion")
	assert.True(t, strings.Contains(prompt, `"name":"Solar Fund"`))
}
