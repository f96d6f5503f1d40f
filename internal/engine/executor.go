package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// Максимальный размер читаемого тела ответа. Защита от бесконечных стримов;
// для диффинга и сводок всё равно используется только начало.
const maxResponseBytes = 1 << 20

// ProbeExecutor - исполнитель структурированных пакетов: подставляет
// полезные нагрузки в шаблон и шлёт пробы с ограниченной параллельностью.
type ProbeExecutor struct {
	timeout time.Duration
	sem     *semaphore.Weighted
	client  *http.Client
	debug   bool
}

func NewProbeExecutor(cfg *config.Config) *ProbeExecutor {
	transport := &http.Transport{
		// Цели сканирования часто живут на самоподписанных сертификатах
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if cfg.ScanProxy != "" {
		if proxyURL, err := url.Parse(cfg.ScanProxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Printf("⚠️ Invalid SCAN_PROXY %q, probing directly: %v", cfg.ScanProxy, err)
		}
	}
	return &ProbeExecutor{
		timeout: cfg.ScanTimeout,
		sem:     semaphore.NewWeighted(cfg.ScanMaxConcurrency),
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ScanTimeout,
		},
		debug: cfg.DebugEnabled(),
	}
}

// probeSpec - одна подготовленная проба (после рендера шаблона).
type probeSpec struct {
	parameter string
	payload   string
	url       string
	headers   map[string]string
	body      string
}

// ExecuteStructured выполняет все тестовые случаи пакета. points задают
// исходные значения для восстановления известных плейсхолдеров; для
// плейсхолдеров, которых реестр точек не знает (их породил LLM), исходным
// значением служит внутренний текст {{...}}.
//
// Возвращаемый срез упорядочен по (test_case, payload); все пробы
// дожидаются завершения до возврата.
func (e *ProbeExecutor) ExecuteStructured(ctx context.Context, packet *models.StructuredPacket, points []models.InjectionPoint, baselineResponse string) []models.ProbeResult {
	if packet.Empty() {
		log.Printf("⚠️ Executor received an empty structured packet")
		return nil
	}

	tpl := packet.Request
	if tpl.Method == "" {
		tpl.Method = "GET"
	}
	tpl.Method = strings.ToUpper(tpl.Method)

	// 1. Авторитетное множество плейсхолдеров - только из шаблона
	declared := TemplatePlaceholders(&tpl)
	restoreMap := make(map[string]string, len(declared))
	for placeholder, inner := range declared {
		restoreMap[placeholder] = inner
	}
	for _, p := range points {
		if _, ok := restoreMap[p.Placeholder]; ok {
			restoreMap[p.Placeholder] = p.OriginalValue
		}
	}
	restore := func(placeholder string) string {
		if orig, ok := restoreMap[placeholder]; ok {
			return orig
		}
		return PlaceholderInner(placeholder)
	}

	// 2. Фильтрация тестов с незарегистрированными плейсхолдерами
	var valid []models.TestCase
	for _, tc := range packet.TestCases {
		if _, ok := declared[tc.Parameter]; ok {
			valid = append(valid, tc)
		} else {
			log.Printf("⚠️ Dropping test case with undeclared placeholder: %s", tc.Parameter)
		}
	}
	if len(valid) == 0 {
		log.Printf("⚠️ No valid test cases to execute")
		return nil
	}

	// 3. Заголовки с длиной тела пересчитываются клиентом
	cleanHeaders := make(map[string]string, len(tpl.Headers))
	for k, v := range tpl.Headers {
		lower := strings.ToLower(k)
		if lower == "content-length" || lower == "transfer-encoding" {
			continue
		}
		cleanHeaders[k] = v
	}
	tpl.Headers = cleanHeaders

	// 4. Рендер всех проб: ровно один активный плейсхолдер на пробу
	var specs []probeSpec
	for _, tc := range valid {
		for _, payload := range tc.Payload {
			u, headers, body := RenderProbe(&tpl, tc.Parameter, payload, restore)
			specs = append(specs, probeSpec{
				parameter: tc.Parameter,
				payload:   payload,
				url:       u,
				headers:   headers,
				body:      body,
			})
		}
	}

	// 5. Параллельное исполнение под семафором, итог ждём целиком
	results := make([]models.ProbeResult, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			results[i] = errorResult(spec, err)
			continue
		}
		wg.Add(1)
		go func(i int, spec probeSpec) {
			defer wg.Done()
			defer e.sem.Release(1)
			results[i] = e.executeSingle(ctx, tpl.Method, spec, baselineResponse)
		}(i, spec)
	}
	wg.Wait()
	return results
}

func (e *ProbeExecutor) executeSingle(ctx context.Context, method string, spec probeSpec, baselineResponse string) models.ProbeResult {
	if e.debug {
		log.Printf("🔸 Probe | %s %s | point: %s | payload: %s", method, spec.url, spec.parameter, spec.payload)
	}

	var bodyReader io.Reader
	if spec.body != "" {
		// Тело уходит сырыми байтами: пересериализация ломает инъекции
		// со структурными символами
		bodyReader = strings.NewReader(spec.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.url, bodyReader)
	if err != nil {
		return errorResult(spec, err)
	}
	for k, v := range spec.headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Printf("⏱️ Probe timed out | point: %s | payload: %s", spec.parameter, spec.payload)
			return models.ProbeResult{
				Parameter:  spec.parameter,
				Payload:    spec.payload,
				Response:   models.TimeoutMarker,
				Status:     0,
				Elapsed:    e.timeout.Seconds(),
				LenDiff:    0,
				Similarity: 0.0,
			}
		}
		return errorResult(spec, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if isTimeout(err) {
			return models.ProbeResult{
				Parameter:  spec.parameter,
				Payload:    spec.payload,
				Response:   models.TimeoutMarker,
				Status:     0,
				Elapsed:    e.timeout.Seconds(),
				LenDiff:    0,
				Similarity: 0.0,
			}
		}
		return errorResult(spec, err)
	}

	responseBody := string(raw)
	return models.ProbeResult{
		Parameter:  spec.parameter,
		Payload:    spec.payload,
		Response:   responseBody,
		Status:     resp.StatusCode,
		Elapsed:    elapsed,
		LenDiff:    len(responseBody) - len(baselineResponse),
		Similarity: ResponseSimilarity(baselineResponse, responseBody),
	}
}

func errorResult(spec probeSpec, err error) models.ProbeResult {
	return models.ProbeResult{
		Parameter:  spec.parameter,
		Payload:    spec.payload,
		Response:   "Error: " + err.Error(),
		Status:     0,
		Elapsed:    0,
		LenDiff:    0,
		Similarity: 0.0,
	}
}

// isTimeout отличает таймаут чтения/дедлайна от прочих сетевых ошибок.
// Для time-based blind SQLi таймаут - полезный сигнал, а не сбой.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
