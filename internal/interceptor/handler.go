// Package interceptor - обработка перехваченного трафика: фильтрация,
// дедупликация по отпечаткам, обучение словаря параметров и постановка
// задач в очередь сканирования.
package interceptor

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// Расширения статики, не несущей инъектируемых параметров.
var staticExtensions = []string{
	".js", ".css", ".png", ".jpg", ".gif", ".svg", ".woff", ".woff2", ".ico",
}

// FlowStore - срез хранилища, нужный перехватчику: отпечатки, очередь,
// словарь параметров.
type FlowStore interface {
	IsDuplicate(ctx context.Context, fingerprint string) (bool, error)
	AddFingerprint(ctx context.Context, fingerprint string) error
	PushTask(ctx context.Context, task *models.TaskPacket) error
	AddHostParams(ctx context.Context, host string, params []string) error
}

type Handler struct {
	cfg         *config.Config
	store       FlowStore
	projectName string
}

func NewHandler(cfg *config.Config, store FlowStore, projectName string) *Handler {
	log.Printf("🕸️ Interceptor ready, whitelist: %v", cfg.TargetWhitelist)
	return &Handler{cfg: cfg, store: store, projectName: projectName}
}

// Fingerprint - стабильный дайджест запроса:
// SHA-256 от "method|pretty_url|md5(body или \"empty\")".
func Fingerprint(method, prettyURL string, body []byte) string {
	bodyHash := "empty"
	if len(body) > 0 {
		bodyHash = fmt.Sprintf("%x", md5.Sum(body))
	}
	full := fmt.Sprintf("%s|%s|%s", method, prettyURL, bodyHash)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(full)))
}

func isStaticAsset(path string) bool {
	for _, ext := range staticExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// ProcessFlow прогоняет один обмен через все ворота. Идемпотентен:
// повторный вызов с тем же обменом не породит вторую задачу.
func (h *Handler) ProcessFlow(ctx context.Context, flow *models.CapturedFlow) error {
	req := flow.Request

	// 1. Белый список
	if !h.cfg.InWhitelist(req.PrettyHost) {
		return nil
	}

	// 2. Статические ресурсы
	if isStaticAsset(req.Path) {
		return nil
	}

	// 3. Отпечаток и дедупликация
	fingerprint := Fingerprint(req.Method, req.PrettyURL, req.Content)
	dup, err := h.store.IsDuplicate(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if dup {
		if h.cfg.DebugEnabled() {
			log.Printf("🔂 Skipping duplicate request: %s", req.PrettyURL)
		}
		return nil
	}

	// 4. Обучение словаря параметров хоста.
	// Сбой извлечения не должен блокировать постановку задачи.
	h.learnParams(ctx, flow)

	// 5. Фиксация отпечатка и постановка задачи
	task := &models.TaskPacket{
		URL:         req.PrettyURL,
		Method:      req.Method,
		Headers:     req.Headers,
		Body:        req.Text,
		Fingerprint: fingerprint,
		ProjectName: h.projectName,
	}
	if flow.Response != nil {
		task.ResponseHeaders = flow.Response.Headers
		task.ResponseBody = flow.Response.Text
	}

	if err := h.store.AddFingerprint(ctx, fingerprint); err != nil {
		return fmt.Errorf("persist fingerprint: %w", err)
	}
	if err := h.store.PushTask(ctx, task); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	log.Printf("📥 Captured new task: [%s] %s", req.Method, req.PrettyURL)
	return nil
}

// learnParams пополняет словарь параметров хоста: query, тело запроса
// (JSON-объект либо form) и имена полей HTML-форм из ответа.
func (h *Handler) learnParams(ctx context.Context, flow *models.CapturedFlow) {
	req := flow.Request

	host := req.PrettyHost
	if host == "" {
		host = req.Headers["Host"]
	}
	if host == "" {
		return
	}

	paramSet := map[string]bool{}

	// 1. Query-параметры
	if idx := strings.Index(req.PrettyURL, "?"); idx >= 0 {
		for _, pair := range strings.Split(req.PrettyURL[idx+1:], "&") {
			if eq := strings.Index(pair, "="); eq > 0 {
				paramSet[pair[:eq]] = true
			}
		}
	}

	// 2. Параметры тела: сначала JSON-объект, затем form-urlencoded
	if body := strings.TrimSpace(req.Text); body != "" {
		if strings.HasPrefix(body, "{") {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal([]byte(body), &obj); err == nil {
				for key := range obj {
					paramSet[key] = true
				}
			}
		} else if strings.Contains(body, "=") {
			for _, pair := range strings.Split(body, "&") {
				if eq := strings.Index(pair, "="); eq > 0 {
					paramSet[pair[:eq]] = true
				}
			}
		}
	}

	// 3. Имена полей HTML-форм из ответа
	if flow.Response != nil && isHTMLResponse(flow.Response.Headers) {
		for _, name := range extractFormFields(flow.Response.Text) {
			paramSet[name] = true
		}
	}

	if len(paramSet) == 0 {
		return
	}
	params := make([]string, 0, len(paramSet))
	for p := range paramSet {
		params = append(params, p)
	}
	if err := h.store.AddHostParams(ctx, host, params); err != nil {
		log.Printf("⚠️ Failed to learn host params for %s: %v", host, err)
	}
}

func isHTMLResponse(headers map[string]string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return strings.Contains(strings.ToLower(v), "text/html")
		}
	}
	return false
}

// extractFormFields вытаскивает имена input/select/textarea из HTML.
func extractFormFields(htmlContent string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}
	var names []string
	doc.Find("form").Each(func(i int, form *goquery.Selection) {
		form.Find("input, select, textarea").Each(func(j int, field *goquery.Selection) {
			if name, ok := field.Attr("name"); ok && name != "" {
				names = append(names, name)
			}
		})
	})
	return names
}
