package llm

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/metrics"
	"github.com/abhisek/catengine/internal/store"
)

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"n":1}`), Usage: Usage{InputTokens: 3}},
		MockResponse{Err: errors.New("boom")},
	)

	resp, err := m.Generate(context.Background(), Request{System: "s"})
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(resp.Content))
	assert.Equal(t, "mock", resp.Model)

	_, err = m.Generate(context.Background(), Request{})
	assert.EqualError(t, err, "boom")

	_, err = m.Generate(context.Background(), Request{})
	var un *ErrProviderUnavailable
	assert.ErrorAs(t, err, &un)

	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, "s", m.Calls[0].System)

	m.AddResponse(MockResponse{Content: json.RawMessage(`{}`)})
	_, err = m.Generate(context.Background(), Request{})
	assert.NoError(t, err)
}

func TestPurpose(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))
	assert.Equal(t, "difficulty-label", PurposeFrom(WithPurpose(ctx, "difficulty-label")))
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  func() Config
		ok   bool
	}{
		{"anthropic with key", func() Config { c := DefaultConfig(); c.Anthropic.APIKey = "k"; return c }, true},
		{"anthropic without key", DefaultConfig, false},
		{"openai without key", func() Config { c := DefaultConfig(); c.Provider = "openai"; return c }, false},
		{"gemini with key", func() Config { c := DefaultConfig(); c.Provider = "gemini"; c.Gemini.APIKey = "k"; return c }, true},
		{"openrouter without key", func() Config { c := DefaultConfig(); c.Provider = "openrouter"; return c }, false},
		{"mock", func() Config { c := DefaultConfig(); c.Provider = "mock"; return c }, true},
		{"unknown", func() Config { c := DefaultConfig(); c.Provider = "llama"; return c }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg().Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigValidateNamesEnvVar(t *testing.T) {
	c := DefaultConfig()
	c.Provider = "gemini"
	assert.ErrorContains(t, c.Validate(), "CAT_GEMINI_API_KEY")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CAT_LLM_PROVIDER", "openai")
	t.Setenv("CAT_OPENAI_API_KEY", "sk-test")
	t.Setenv("CAT_OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("CAT_ANTHROPIC_MODEL", "claude-sonnet")

	cfg := ConfigFromEnv()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "claude-sonnet", cfg.Anthropic.Model)
	assert.NoError(t, cfg.Validate())
}

func TestDiscoverConfig(t *testing.T) {
	for _, env := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(env, "")
	}
	_, ok := DiscoverConfig()
	assert.False(t, ok)

	t.Setenv("ANTHROPIC_API_KEY", "a")
	t.Setenv("OPENAI_API_KEY", "o")
	cfg, ok := DiscoverConfig()
	require.True(t, ok)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "o", cfg.OpenAI.APIKey)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{Provider: "mock"}, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	_, err = NewProvider(ctx, Config{Provider: "llama"}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewProvider(ctx, Config{Provider: "openai"}, nil, nil, nil)
	assert.ErrorContains(t, err, "initializing openai provider")

	cfg := DefaultConfig()
	cfg.Provider = "openrouter"
	cfg.OpenRouter.APIKey = "k"
	p, err = NewProvider(ctx, cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &RetryProvider{}, p)
	assert.Equal(t, "google/gemini-2.0-flash-exp", p.ModelID())
}

func TestLoggingProviderRecordsEvents(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "cat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	m := metrics.New()

	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"difficulty":"Easy"}`), Usage: Usage{InputTokens: 12, OutputTokens: 4}},
		MockResponse{Err: &ErrRejected{StatusCode: 401, Err: errors.New("bad key")}},
	)
	p := WithLogging(mock, "mock", s.Events(), logger.Nop(), m)

	lctx := WithPurpose(ctx, "difficulty-label")
	_, err = p.Generate(lctx, Request{System: "Rate it.", Messages: []Message{{Role: RoleUser, Content: "Q?"}}, Schema: labelSchema})
	require.NoError(t, err)
	_, err = p.Generate(lctx, Request{Messages: []Message{{Role: RoleUser, Content: "Q2?"}}})
	require.Error(t, err)

	events, err := s.Events().QueryLLMRequests(ctx, store.QueryOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)

	failed, okEvent := events[0], events[1]
	assert.True(t, okEvent.Success)
	assert.Equal(t, "difficulty-label", okEvent.Purpose)
	assert.Equal(t, 12, okEvent.InputTokens)
	assert.Equal(t, `{"difficulty":"Easy"}`, okEvent.ResponseBody)
	assert.Contains(t, okEvent.RequestBody, "[system]\nRate it.")
	assert.Contains(t, okEvent.RequestBody, "[schema: difficulty-label-test]")

	assert.False(t, failed.Success)
	assert.Contains(t, failed.ErrorMessage, "bad key")
	assert.Equal(t, "mock", failed.Model)

	reg := m.Registry()
	n, err := testutil.GatherAndCount(reg, "cat_llm_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoggingProviderWithoutSinks(t *testing.T) {
	p := WithLogging(NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)}), "mock", nil, nil, nil)
	_, err := p.Generate(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("claude-haiku")
	require.NotNil(t, c)
	assert.InDelta(t, 1.0+5.0, c.Cost(1_000_000, 1_000_000), 1e-9)

	assert.NotNil(t, LookupCost("gpt-4o-mini"))
	assert.Nil(t, LookupCost("unheard-of-model"))
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("x")
	var rl *ErrRateLimit
	assert.ErrorAs(t, classifyStatus(429, base), &rl)
	var rej *ErrRejected
	assert.ErrorAs(t, classifyStatus(404, base), &rej)
	var un *ErrProviderUnavailable
	assert.ErrorAs(t, classifyStatus(503, base), &un)
	assert.ErrorAs(t, classifyStatus(0, base), &un)
	assert.ErrorIs(t, classifyStatus(503, base), base)
}
