// Package manager - верхнеуровневый диспетчер: решает, какие воркеры
// запускать для перехваченного обмена.
package manager

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/llm"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/prompts"
)

var knownTasks = map[string]bool{
	"sqli": true,
	"xss":  true,
	"fuzz": true,
}

type Manager struct {
	provider llm.Provider
	cfg      *config.Config
}

func New(provider llm.Provider, cfg *config.Config) *Manager {
	return &Manager{provider: provider, cfg: cfg}
}

// Analyze возвращает список задач для обмена. Пустой список - легальный
// исход: цель вне белого списка либо рисков не найдено.
func (m *Manager) Analyze(ctx context.Context, state *models.GlobalState) ([]string, error) {
	// Защита в глубину: перехватчик уже фильтровал по белому списку,
	// но запрос мог попасть в очередь другим путём
	host := state.Host()
	if !m.cfg.InWhitelist(host) {
		log.Printf("🛑 Manager veto: host %s is not whitelisted", host)
		return nil, nil
	}

	userContent := fmt.Sprintf(
		"### Request\nMethod: %s\nURL: %s\nHeaders: %v\nBody: %s\n\n### Response (Context)\nHeaders: %v\nBody: %s",
		state.Method,
		state.TargetURL,
		state.Headers,
		orNone(state.Body),
		state.ResponseHeaders,
		engine.TruncateString(orNone(state.ResponseBody), 2000),
	)

	content, err := m.provider.Chat(ctx, &llm.ChatRequest{
		Model: m.cfg.ModelNameManager,
		Messages: []llm.Message{
			{Role: "system", Content: prompts.ManagerSystem},
			{Role: "user", Content: userContent},
		},
		AgentName: "Manager",
		TaskID:    state.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("manager LLM: %w", err)
	}

	tasks := ParseTasks(content)
	log.Printf("🧭 Manager decision for %s: %v", state.TargetURL, tasks)
	return tasks, nil
}

// ParseTasks разбирает ответ LLM: нижний регистр, запятые, неизвестные
// токены молча отбрасываются.
func ParseTasks(content string) []string {
	content = strings.ToLower(strings.TrimSpace(content))
	if content == "" || content == "none" {
		return nil
	}
	var tasks []string
	seen := map[string]bool{}
	for _, token := range strings.Split(content, ",") {
		token = strings.TrimSpace(token)
		if knownTasks[token] && !seen[token] {
			seen[token] = true
			tasks = append(tasks, token)
		}
	}
	return tasks
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
