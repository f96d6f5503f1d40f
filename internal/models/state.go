package models

import "strings"

// Решения аналитика. Сравнение всегда после strings.ToLower.
const (
	DecisionFound  = "found"
	DecisionRetry  = "retry"
	DecisionGiveUp = "give_up"
)

// WorkerState - состояние одного vuln-воркера на протяжении скана.
// Каждый воркер владеет своим счётчиком повторов и своим фидбеком;
// между воркерами эти поля никогда не смешиваются.
type WorkerState struct {
	Vuln string `json:"vuln"`

	PotentialPoints []InjectionPoint `json:"potential_points"`

	// HistoryResults - append-only свод проб по раундам. После каждого
	// раунда исполнителя хранимый срез обрезается до последних
	// MaxHistoryResults записей.
	HistoryResults []ProbeSummary `json:"history_results"`

	// AnalysisFeedback - накопленные рассуждения аналитика, по одному на
	// каждый раунд RETRY. Направляют следующую генерацию стратега.
	AnalysisFeedback []string `json:"analysis_feedback"`

	RetryCount int `json:"retry_count"`

	// PlannedData - текущий пакет стратега. Аналитик явно обнуляет его
	// после каждого раунда (allow-nil семантика).
	PlannedData *StructuredPacket `json:"planned_data,omitempty"`

	// TestResults перезаписываются каждым раундом исполнителя.
	TestResults []ProbeResult `json:"test_results"`

	Findings []Finding `json:"findings"`

	NextStep     string `json:"next_step"`
	IsVulnerable bool   `json:"is_vulnerable"`
}

// GlobalState - состояние одного скана перехваченного запроса.
type GlobalState struct {
	RequestID   string `json:"request_id"`
	ProjectName string `json:"project_name"`

	TargetURL string            `json:"target_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`

	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    string            `json:"response_body"`

	// Tasks - подмножество {sqli, xss, fuzz}, выбранное менеджером.
	Tasks []string `json:"tasks"`

	Messages []string `json:"messages"`
	AuditLog []string `json:"audit_log"`

	// Findings только растёт: результаты всех воркеров конкатенируются
	// в точке слияния.
	Findings []Finding `json:"findings"`

	// Под-записи воркеров. Воркеры не читают состояние друг друга.
	SQLi *WorkerState `json:"sqli,omitempty"`
	XSS  *WorkerState `json:"xss,omitempty"`
	Fuzz *WorkerState `json:"fuzz,omitempty"`
}

// Host извлекает хост из TargetURL позиционным разбором; при отсутствии
// схемы URL трактуется как host/path.
func (g *GlobalState) Host() string {
	url := g.TargetURL
	if idx := strings.Index(url, "://"); idx >= 0 {
		url = url[idx+3:]
	}
	if idx := strings.Index(url, "/"); idx >= 0 {
		url = url[:idx]
	}
	return url
}

// FullRequestSnapshot собирает снимок исходного запроса для находок и промптов.
func (g *GlobalState) FullRequestSnapshot() FullRequest {
	return FullRequest{
		Method:  g.Method,
		URL:     g.TargetURL,
		Headers: g.Headers,
		Body:    g.Body,
	}
}

// OriginalTemplate - шаблон без плейсхолдеров; запасной вариант стратега,
// когда LLM не вернул собственный шаблон.
func (g *GlobalState) OriginalTemplate() RequestTemplate {
	return RequestTemplate{
		Method:    g.Method,
		TargetURL: g.TargetURL,
		Headers:   g.Headers,
		Body:      g.Body,
	}
}

// MergeWorker - редьюсер точки слияния: находки и только они поднимаются в
// глобальное состояние (append-only), под-запись сохраняется целиком.
// Вызывается оркестратором последовательно после завершения воркеров.
func (g *GlobalState) MergeWorker(w *WorkerState) {
	if w == nil {
		return
	}
	g.Findings = append(g.Findings, w.Findings...)
	switch w.Vuln {
	case "sqli":
		g.SQLi = w
	case "xss":
		g.XSS = w
	case "fuzz":
		g.Fuzz = w
	}
}
