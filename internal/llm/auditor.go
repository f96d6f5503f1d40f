package llm

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Auditor пишет журнал всех взаимодействий с LLM в JSONL-файлы по датам.
// Выключенный аудитор безопасен для вызова и ничего не делает.
type Auditor struct {
	dir     string
	enabled bool
	mu      sync.Mutex
}

type auditEntry struct {
	Timestamp string      `json:"timestamp"`
	Agent     string      `json:"agent"`
	TaskID    string      `json:"task_id"`
	Prompt    interface{} `json:"prompt"`
	Response  string      `json:"response"`
}

func NewAuditor(dir string, enabled bool) *Auditor {
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("⚠️ Failed to create LLM audit dir %s: %v", dir, err)
			enabled = false
		}
	}
	return &Auditor{dir: dir, enabled: enabled}
}

// Record фиксирует одно взаимодействие. Сбой записи логируется и не
// прерывает основной поток.
func (a *Auditor) Record(agent, taskID string, prompt interface{}, response string) {
	if a == nil || !a.enabled {
		return
	}

	entry := auditEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Agent:     agent,
		TaskID:    taskID,
		Prompt:    prompt,
		Response:  response,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Printf("⚠️ Failed to marshal LLM audit entry: %v", err)
		return
	}

	path := filepath.Join(a.dir, time.Now().Format("2006-01-02")+".jsonl")

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("⚠️ Failed to open LLM audit log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		log.Printf("⚠️ Failed to write LLM audit log: %v", err)
	}
}
