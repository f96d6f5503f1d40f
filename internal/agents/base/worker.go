// Package base содержит общую машину состояний vuln-воркеров:
// ANALYZE_POINTS -> STRATEGIZE -> EXECUTE -> ANALYZE_RESULTS -> (loop | End).
// Конкретные воркеры (sqli, xss, fuzz) задают только полезные нагрузки,
// промпты и проекцию результатов.
package base

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/graph"
	"github.com/BetterCallFirewall/aegisx/internal/llm"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// maxStaticPoints ограничивает первый статический раунд, чтобы декартово
// произведение точка x payload не взрывало число проб.
const maxStaticPoints = 3

// origSliceLen - сколько байт исходного ответа уходит аналитику.
const origSliceLen = 500

// FindingSaver - срез интерфейса реляционного хранилища, нужный воркеру.
type FindingSaver interface {
	SaveVulnerability(ctx context.Context, projectName string, f *models.Finding) error
}

// ScanState - состояние одного воркера внутри одного скана. Global читается,
// Worker принадлежит воркеру целиком.
type ScanState struct {
	Global *models.GlobalState
	Worker *models.WorkerState
}

// VulnSpec - всё, чем один тип уязвимости отличается от другого.
type VulnSpec struct {
	Token       string // ключ задачи менеджера: "sqli", "xss", "fuzz"
	DisplayName string // для логов и аудита: "SQLi"
	FindingType string // тип находки: "SQL Injection"

	// StaticPayloads включают нулевой по стоимости LLM первый раунд.
	// Пустой список означает, что первый раунд тоже генерирует LLM.
	StaticPayloads []string

	// GeneratorPrompt возвращает системный промпт стратега. Контекст нужен
	// воркерам, подмешивающим внешние данные (fuzz - словарь хоста).
	GeneratorPrompt func(ctx context.Context, s *ScanState) string

	// AnalyzerPrompt - системный промпт аналитика.
	AnalyzerPrompt string

	// Summarize проецирует результаты раунда в компактную сводку для LLM.
	Summarize func(s *ScanState) []models.ProbeSummary

	// AnalyzerUser собирает пользовательское сообщение аналитика.
	AnalyzerUser func(s *ScanState, resultsJSON string) string
}

// Deps - внешние зависимости воркера.
type Deps struct {
	Provider llm.Provider
	Executor *engine.ProbeExecutor
	Findings FindingSaver // может быть nil: тогда находки живут только в состоянии
	Config   *config.Config
}

// Worker - скомпонованная машина состояний одного типа уязвимости.
type Worker struct {
	spec   VulnSpec
	deps   Deps
	limits HistoryLimits
	graph  *graph.Graph[*ScanState]
}

func NewWorker(spec VulnSpec, deps Deps) *Worker {
	w := &Worker{spec: spec, deps: deps, limits: DefaultHistoryLimits()}

	w.graph = graph.New[*ScanState]().
		AddNode("analyze_points", w.analyzePointsNode).
		AddNode("strategist", w.strategistNode).
		AddNode("executor", w.executorNode).
		AddNode("analyzer", w.analyzerNode).
		AddEdge("analyze_points", "strategist").
		AddEdge("strategist", "executor").
		AddEdge("executor", "analyzer").
		AddRouter("analyzer", w.route).
		SetEntry("analyze_points")
	return w
}

func (w *Worker) Token() string { return w.spec.Token }

// Run прогоняет воркер до терминального состояния и возвращает его
// под-запись. Состояние других воркеров не читается и не пишется.
func (w *Worker) Run(ctx context.Context, global *models.GlobalState) (*models.WorkerState, error) {
	state := &ScanState{
		Global: global,
		Worker: &models.WorkerState{Vuln: w.spec.Token},
	}
	if err := w.graph.Run(ctx, state); err != nil {
		return state.Worker, fmt.Errorf("%s worker: %w", w.spec.DisplayName, err)
	}
	return state.Worker, nil
}

// analyzePointsNode - детерминированный шаг без LLM: выделение точек
// внедрения и инициализация счётчиков.
func (w *Worker) analyzePointsNode(ctx context.Context, s *ScanState) error {
	s.Worker.PotentialPoints = engine.DerivePoints(s.Global.TargetURL, s.Global.Body)
	s.Worker.RetryCount = 0
	s.Worker.TestResults = nil
	s.Worker.AnalysisFeedback = nil
	log.Printf("🔎 %s identified %d injection points for %s", w.spec.DisplayName, len(s.Worker.PotentialPoints), s.Global.TargetURL)
	return nil
}

func (w *Worker) strategistNode(ctx context.Context, s *ScanState) error {
	// Стратегия 1: первый раунд со статическими нагрузками - без LLM
	if s.Worker.RetryCount == 0 && len(s.Worker.AnalysisFeedback) == 0 && len(w.spec.StaticPayloads) > 0 {
		packet := engine.BuildStaticPacket(
			s.Global.Method, s.Global.TargetURL, s.Global.Headers, s.Global.Body,
			s.Worker.PotentialPoints, w.spec.StaticPayloads, maxStaticPoints,
		)
		if packet != nil {
			log.Printf("⚡ %s first round: %d static test cases, no LLM cost", w.spec.DisplayName, len(packet.TestCases))
			s.Worker.PlannedData = packet
			return nil
		}
	}

	// Стратегия 2: генерация LLM с учётом фидбека и истории
	s.Worker.PlannedData = w.generateWithLLM(ctx, s)
	return nil
}

func (w *Worker) generateWithLLM(ctx context.Context, s *ScanState) *models.StructuredPacket {
	systemPrompt := w.spec.GeneratorPrompt(ctx, s)
	userContent := w.buildGeneratorUserContent(s)

	emptyPacket := &models.StructuredPacket{Request: s.Global.OriginalTemplate()}

	content, err := w.deps.Provider.Chat(ctx, &llm.ChatRequest{
		Model: w.deps.Config.ModelNameWorker,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		JSONReply: true,
		AgentName: w.spec.DisplayName + "_Strategist",
		TaskID:    s.Global.RequestID,
	})
	if err != nil {
		log.Printf("❌ %s strategist LLM failed: %v", w.spec.DisplayName, err)
		return emptyPacket
	}

	var packet models.StructuredPacket
	if err := json.Unmarshal([]byte(stripJSONFences(content)), &packet); err != nil {
		log.Printf("❌ %s strategist returned unparseable JSON: %v | %s", w.spec.DisplayName, err, engine.TruncateString(content, 100))
		return emptyPacket
	}
	if packet.Request.TargetURL == "" {
		packet.Request = s.Global.OriginalTemplate()
	}
	log.Printf("🧠 %s strategist produced %d test cases", w.spec.DisplayName, len(packet.TestCases))
	return &packet
}

func (w *Worker) buildGeneratorUserContent(s *ScanState) string {
	fullRequest, _ := json.Marshal(s.Global.FullRequestSnapshot())

	var points strings.Builder
	for _, p := range s.Worker.PotentialPoints {
		fmt.Fprintf(&points, "- параметр: %s, исходное значение: %s, тип: %s, плейсхолдер: %s\n",
			p.Name, p.OriginalValue, p.Kind, p.Placeholder)
	}

	var b strings.Builder
	b.WriteString("### Контекст цели\n")
	fmt.Fprintf(&b, "Исходный запрос: %s\n", fullRequest)
	fmt.Fprintf(&b, "Потенциальные точки:\n%s", points.String())

	if len(s.Worker.AnalysisFeedback) > 0 {
		feedback, _ := json.Marshal(s.Worker.AnalysisFeedback)
		fmt.Fprintf(&b, "Фидбек анализа: %s\n", feedback)
	}
	if history := w.limits.TrimHistory(s.Worker.HistoryResults); len(history) > 0 {
		historyJSON, _ := json.Marshal(history)
		fmt.Fprintf(&b, "Сводка прошлых раундов:\n%s\n", historyJSON)
	}
	return b.String()
}

func (w *Worker) executorNode(ctx context.Context, s *ScanState) error {
	if s.Worker.PlannedData.Empty() {
		log.Printf("⚠️ %s has no planned test cases, skipping probe round", w.spec.DisplayName)
		s.Worker.TestResults = nil
		return nil
	}

	results := w.deps.Executor.ExecuteStructured(ctx, s.Worker.PlannedData, s.Worker.PotentialPoints, s.Global.ResponseBody)
	s.Worker.TestResults = results

	// Свод истории: компактная проекция без срезов ответа
	for _, r := range results {
		s.Worker.HistoryResults = append(s.Worker.HistoryResults, models.ProbeSummary{
			Parameter:  r.Parameter,
			Payload:    r.Payload,
			Status:     r.Status,
			Elapsed:    r.Elapsed,
			LenDiff:    r.LenDiff,
			Similarity: r.Similarity,
		})
	}
	s.Worker.HistoryResults = w.limits.TrimHistory(s.Worker.HistoryResults)
	return nil
}

func (w *Worker) analyzerNode(ctx context.Context, s *ScanState) error {
	summary := w.spec.Summarize(s)
	resultsJSON, _ := json.Marshal(summary)

	analysis := w.invokeAnalyzer(ctx, s, string(resultsJSON))
	decision := w.validateDecision(analysis)

	log.Printf("📊 %s analysis | vulnerable: %v | decision: %s | reasoning: %s",
		w.spec.DisplayName, analysis.IsVulnerable, decision, engine.TruncateString(analysis.Reasoning, 200))

	if analysis.IsVulnerable && decision == models.DecisionFound {
		finding := models.Finding{
			RequestID:   s.Global.RequestID,
			Type:        w.spec.FindingType,
			URL:         s.Global.TargetURL,
			Method:      s.Global.Method,
			Parameter:   analysis.VulnerableParameter,
			Payload:     analysis.Payload,
			Evidence:    analysis.Reasoning,
			Severity:    "high",
			FullRequest: s.Global.FullRequestSnapshot(),
		}
		s.Worker.Findings = append(s.Worker.Findings, finding)
		log.Printf("🎯 %s vulnerability found! parameter: %s", w.spec.DisplayName, analysis.VulnerableParameter)

		if w.deps.Findings != nil {
			if err := w.deps.Findings.SaveVulnerability(ctx, s.Global.ProjectName, &finding); err != nil {
				// Находка остаётся в состоянии скана даже при сбое хранилища
				log.Printf("⚠️ Failed to persist %s finding: %v", w.spec.DisplayName, err)
			}
		}
	}

	if decision == models.DecisionRetry {
		s.Worker.RetryCount++
		s.Worker.AnalysisFeedback = append(s.Worker.AnalysisFeedback, analysis.Reasoning)
		s.Worker.AnalysisFeedback = w.limits.TrimFeedback(s.Worker.AnalysisFeedback)
	}

	// Явная очистка плана раунда (allow-nil семантика PlannedData)
	s.Worker.PlannedData = nil
	s.Worker.IsVulnerable = analysis.IsVulnerable
	s.Worker.NextStep = decision
	return nil
}

func (w *Worker) invokeAnalyzer(ctx context.Context, s *ScanState, resultsJSON string) *models.Analysis {
	content, err := w.deps.Provider.Chat(ctx, &llm.ChatRequest{
		Model: w.deps.Config.ModelNameWorker,
		Messages: []llm.Message{
			{Role: "system", Content: w.spec.AnalyzerPrompt},
			{Role: "user", Content: w.spec.AnalyzerUser(s, resultsJSON)},
		},
		JSONReply: true,
		AgentName: w.spec.DisplayName + "_Analyzer",
		TaskID:    s.Global.RequestID,
	})
	if err != nil {
		return &models.Analysis{
			IsVulnerable: false,
			Reasoning:    fmt.Sprintf("LLM call failed: %v", err),
			Decision:     models.DecisionGiveUp,
		}
	}

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(stripJSONFences(content)), &analysis); err != nil {
		log.Printf("❌ %s analyzer returned unparseable JSON: %v | %s", w.spec.DisplayName, err, engine.TruncateString(content, 100))
		return &models.Analysis{
			IsVulnerable: false,
			Reasoning:    fmt.Sprintf("JSON parse error: %v", err),
			Decision:     models.DecisionGiveUp,
		}
	}
	if analysis.Reasoning == "" {
		analysis.Reasoning = "No reasoning provided"
	}
	return &analysis
}

// validateDecision устраняет самопротиворечие аналитика: is_vulnerable=false
// при decision=FOUND принудительно превращается в GIVE_UP.
func (w *Worker) validateDecision(analysis *models.Analysis) string {
	decision := strings.ToLower(strings.TrimSpace(analysis.Decision))
	switch decision {
	case models.DecisionFound, models.DecisionRetry, models.DecisionGiveUp:
	default:
		decision = models.DecisionGiveUp
	}
	if !analysis.IsVulnerable && decision == models.DecisionFound {
		log.Printf("⚠️ %s analyzer contradiction (is_vulnerable=false + FOUND), forcing GIVE_UP", w.spec.DisplayName)
		return models.DecisionGiveUp
	}
	return decision
}

func (w *Worker) route(s *ScanState) string {
	switch s.Worker.NextStep {
	case models.DecisionRetry:
		if s.Worker.RetryCount < w.deps.Config.ScanMaxRetries {
			log.Printf("🔁 %s retrying (%d/%d)", w.spec.DisplayName, s.Worker.RetryCount, w.deps.Config.ScanMaxRetries)
			return "strategist"
		}
		log.Printf("⚠️ %s reached retry limit (%d), terminating", w.spec.DisplayName, s.Worker.RetryCount)
		return graph.End
	default:
		return graph.End
	}
}

// stripJSONFences снимает markdown-ограждения, которыми модели иногда
// оборачивают JSON даже при response_format=json_object.
func stripJSONFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
