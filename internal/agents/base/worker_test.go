package base

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/llm"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/prompts"
)

// scriptedProvider раздаёт заранее заготовленные ответы стратегу и
// аналитику и записывает все обращения.
type scriptedProvider struct {
	mu         sync.Mutex
	strategist []string
	analyzer   []string
	calls      []llm.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req *llm.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, *req)

	var queue *[]string
	if strings.Contains(req.AgentName, "Strategist") {
		queue = &p.strategist
	} else {
		queue = &p.analyzer
	}
	if len(*queue) == 0 {
		return "", errors.New("scripted provider exhausted for " + req.AgentName)
	}
	reply := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return reply, nil
}

func (p *scriptedProvider) callNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, c := range p.calls {
		names = append(names, c.AgentName)
	}
	return names
}

func testConfig() *config.Config {
	return &config.Config{
		ModelNameWorker:    "test-model",
		ScanMaxRetries:     3,
		ScanMaxConcurrency: 5,
		ScanTimeout:        2 * time.Second,
	}
}

func testDeps(provider llm.Provider, saver FindingSaver) Deps {
	cfg := testConfig()
	return Deps{
		Provider: provider,
		Executor: engine.NewProbeExecutor(cfg),
		Findings: saver,
		Config:   cfg,
	}
}

func testSpec(static []string) VulnSpec {
	return VulnSpec{
		Token:          "sqli",
		DisplayName:    "SQLi",
		FindingType:    "SQL Injection",
		StaticPayloads: static,
		GeneratorPrompt: func(ctx context.Context, s *ScanState) string {
			return prompts.SQLiGenerator
		},
		AnalyzerPrompt: prompts.SQLiAnalyzer,
		Summarize: func(s *ScanState) []models.ProbeSummary {
			var out []models.ProbeSummary
			for _, r := range s.Worker.TestResults {
				out = append(out, models.ProbeSummary{
					Parameter: r.Parameter, Payload: r.Payload, Status: r.Status,
					Elapsed: r.Elapsed, LenDiff: r.LenDiff, Similarity: r.Similarity,
				})
			}
			return out
		},
		AnalyzerUser: func(s *ScanState, resultsJSON string) string {
			return "Результаты тестов: " + resultsJSON
		},
	}
}

func globalState(url string) *models.GlobalState {
	return &models.GlobalState{
		RequestID:    "req-test",
		ProjectName:  "Default",
		TargetURL:    url,
		Method:       "GET",
		Headers:      map[string]string{},
		ResponseBody: "baseline",
	}
}

func analyzerJSON(vulnerable bool, decision, param, reasoning string) string {
	return fmt.Sprintf(`{"is_vulnerable":%v,"reasoning":%q,"vulnerable_parameter":%q,"payload":"p","decision":%q}`,
		vulnerable, reasoning, param, decision)
}

func strategistJSON(serverURL string) string {
	return fmt.Sprintf(`{"request":{"method":"GET","target_url":"%s/?id={{1}}","headers":{}},"test_cases":[{"parameter":"{{1}}","payload":["x"]}]}`, serverURL)
}

func TestWorkerStaticFirstRoundSkipsStrategistLLM(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		_, _ = w.Write([]byte("baseline"))
	}))
	defer server.Close()

	provider := &scriptedProvider{
		analyzer: []string{analyzerJSON(false, "GIVE_UP", "", "ничего не найдено")},
	}
	worker := NewWorker(testSpec([]string{"p1", "p2"}), testDeps(provider, nil))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	// Первый раунд статический: единственное обращение к LLM - аналитик
	assert.Equal(t, []string{"SQLi_Analyzer"}, provider.callNames())
	// Две нагрузки на одну точку -> две пробы
	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
	assert.Len(t, ws.HistoryResults, 2)
	assert.Equal(t, models.DecisionGiveUp, ws.NextStep)
	assert.Nil(t, ws.PlannedData)
	assert.Empty(t, ws.Findings)
}

func TestWorkerRetryExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("baseline"))
	}))
	defer server.Close()

	provider := &scriptedProvider{
		strategist: []string{strategistJSON(server.URL)},
		analyzer:   []string{analyzerJSON(false, "RETRY", "", "попробуйте другой вектор")},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, nil))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	// retry_count монотонно дорастает до предела и не превышает его
	assert.Equal(t, 3, ws.RetryCount)
	assert.Len(t, ws.AnalysisFeedback, 3)
	assert.Empty(t, ws.Findings)

	// Раунд 1 статический, раунды 2-3 генерирует LLM; аналитик вызван трижды
	names := provider.callNames()
	var strategistCalls, analyzerCalls int
	for _, n := range names {
		switch n {
		case "SQLi_Strategist":
			strategistCalls++
		case "SQLi_Analyzer":
			analyzerCalls++
		}
	}
	assert.Equal(t, 2, strategistCalls)
	assert.Equal(t, 3, analyzerCalls)
}

func TestWorkerContradictionForcedToGiveUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("baseline"))
	}))
	defer server.Close()

	provider := &scriptedProvider{
		analyzer: []string{analyzerJSON(false, "FOUND", "id", "противоречивый вердикт")},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, nil))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	// is_vulnerable=false никогда не даёт FOUND
	assert.Equal(t, models.DecisionGiveUp, ws.NextStep)
	assert.Empty(t, ws.Findings)
	assert.Zero(t, ws.RetryCount)
}

type fakeSaver struct {
	mu     sync.Mutex
	saved  []models.Finding
	failed bool
}

func (s *fakeSaver) SaveVulnerability(ctx context.Context, projectName string, f *models.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errors.New("storage down")
	}
	s.saved = append(s.saved, *f)
	return nil
}

func TestWorkerFoundMaterializesAndPersistsFinding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("error in your SQL syntax"))
	}))
	defer server.Close()

	saver := &fakeSaver{}
	provider := &scriptedProvider{
		analyzer: []string{analyzerJSON(true, "FOUND", "id", "ошибка СУБД в ответе")},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, saver))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	require.Len(t, ws.Findings, 1)
	finding := ws.Findings[0]
	assert.Equal(t, "SQL Injection", finding.Type)
	assert.Equal(t, "id", finding.Parameter)
	assert.Equal(t, "high", finding.Severity)
	assert.Equal(t, "GET", finding.FullRequest.Method)
	assert.Equal(t, models.DecisionFound, ws.NextStep)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "SQL Injection", saver.saved[0].Type)
}

func TestWorkerStorageFailureKeepsFindingInState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	saver := &fakeSaver{failed: true}
	provider := &scriptedProvider{
		analyzer: []string{analyzerJSON(true, "FOUND", "id", "найдено")},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, saver))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)
	assert.Len(t, ws.Findings, 1)
}

func TestWorkerStrategistParseFailureYieldsEmptyRound(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	// Без статических нагрузок первый раунд идёт через LLM, который
	// возвращает мусор -> пустой пакет -> раунд без проб
	provider := &scriptedProvider{
		strategist: []string{"this is not json at all"},
		analyzer:   []string{analyzerJSON(false, "GIVE_UP", "", "нет данных")},
	}
	worker := NewWorker(testSpec(nil), testDeps(provider, nil))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt64(&hits))
	assert.Empty(t, ws.TestResults)
	assert.Equal(t, models.DecisionGiveUp, ws.NextStep)
}

func TestWorkerAnalyzerParseFailureGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	provider := &scriptedProvider{
		analyzer: []string{"{{{ broken"},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, nil))

	ws, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	assert.Equal(t, models.DecisionGiveUp, ws.NextStep)
	assert.Empty(t, ws.Findings)
}

func TestWorkerFeedbackReachesStrategistPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("baseline"))
	}))
	defer server.Close()

	provider := &scriptedProvider{
		strategist: []string{strategistJSON(server.URL)},
		analyzer: []string{
			analyzerJSON(false, "RETRY", "", "WAF блокирует UNION"),
			analyzerJSON(false, "GIVE_UP", "", "исчерпано"),
		},
	}
	worker := NewWorker(testSpec([]string{"p1"}), testDeps(provider, nil))

	_, err := worker.Run(context.Background(), globalState(server.URL+"/?id=1"))
	require.NoError(t, err)

	// Второй раунд: фидбек первого аналитика присутствует в промпте стратега
	var strategistUser string
	provider.mu.Lock()
	for _, c := range provider.calls {
		if c.AgentName == "SQLi_Strategist" {
			strategistUser = c.Messages[1].Content
		}
	}
	provider.mu.Unlock()
	require.NotEmpty(t, strategistUser)
	assert.Contains(t, strategistUser, "WAF блокирует UNION")
	assert.Contains(t, strategistUser, "Сводка прошлых раундов")
}
