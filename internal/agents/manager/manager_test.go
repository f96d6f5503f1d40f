package manager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/llm"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

type fakeProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (p *fakeProvider) Chat(ctx context.Context, req *llm.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.reply, p.err
}

func TestParseTasks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain list", "sqli,xss,fuzz", []string{"sqli", "xss", "fuzz"}},
		{"none", "none", nil},
		{"uppercase none", "NONE", nil},
		{"mixed case with spaces", " SQLi , fuzz ", []string{"sqli", "fuzz"}},
		{"unknown tokens ignored", "sqli,rce,lfi", []string{"sqli"}},
		{"duplicates collapsed", "sqli,sqli,xss", []string{"sqli", "xss"}},
		{"empty", "", nil},
		{"garbage", "I think this endpoint is fine", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTasks(tt.content))
		})
	}
}

func TestAnalyzeWhitelistVeto(t *testing.T) {
	provider := &fakeProvider{reply: "sqli"}
	mgr := New(provider, &config.Config{TargetWhitelist: []string{"example.com"}})

	state := &models.GlobalState{
		RequestID: "r1",
		TargetURL: "http://evil.com/q?id=1",
		Method:    "GET",
	}
	tasks, err := mgr.Analyze(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	// LLM даже не вызывался
	assert.Zero(t, provider.calls)
}

func TestAnalyzeEmptyWhitelistVetoesAll(t *testing.T) {
	provider := &fakeProvider{reply: "sqli"}
	mgr := New(provider, &config.Config{})

	state := &models.GlobalState{RequestID: "r1", TargetURL: "http://example.com/"}
	tasks, err := mgr.Analyze(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, provider.calls)
}

func TestAnalyzeDispatch(t *testing.T) {
	provider := &fakeProvider{reply: "sqli, fuzz"}
	mgr := New(provider, &config.Config{TargetWhitelist: []string{"vuln.test"}, ModelNameManager: "gpt-4o"})

	state := &models.GlobalState{
		RequestID: "r1",
		TargetURL: "http://vuln.test/q?id=1",
		Method:    "GET",
		Headers:   map[string]string{"Host": "vuln.test"},
	}
	tasks, err := mgr.Analyze(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"sqli", "fuzz"}, tasks)
	assert.Equal(t, 1, provider.calls)
}

func TestAnalyzeLLMError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("api down")}
	mgr := New(provider, &config.Config{TargetWhitelist: []string{"vuln.test"}})

	state := &models.GlobalState{RequestID: "r1", TargetURL: "http://vuln.test/"}
	_, err := mgr.Analyze(context.Background(), state)
	assert.Error(t, err)
}
