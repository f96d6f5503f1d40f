// Package report превращает находки скана в Markdown-отчёт.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &Generator{outputDir: outputDir}, nil
}

// Generate пишет отчёт по находкам одного скана и возвращает путь к файлу.
func (g *Generator) Generate(findings []models.Finding, requestID string) (string, error) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	filename := fmt.Sprintf("report_%s.md", requestID)
	path := filepath.Join(g.outputDir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "# Отчёт о сканировании (Vulnerability Scan Report)\n\n")
	fmt.Fprintf(&b, "**Время генерации**: %s\n", timestamp)
	fmt.Fprintf(&b, "**ID задачи**: %s\n\n---\n\n", requestID)

	fmt.Fprintf(&b, "## 1. Сводка (Summary)\n\n")
	fmt.Fprintf(&b, "Найдено потенциальных уязвимостей: **%d**.\n\n", len(findings))
	b.WriteString("| Тип | Целевой URL | Параметр | Риск |\n")
	b.WriteString("| :--- | :--- | :--- | :--- |\n")
	for _, f := range findings {
		displayURL := f.URL
		if len(displayURL) >= 50 {
			displayURL = displayURL[:47] + "..."
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | **%s** |\n", f.Type, displayURL, orNA(f.Parameter), strings.ToUpper(f.Severity))
	}

	b.WriteString("\n--- \n\n## 2. Детали находок (Detailed Findings)\n\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, f.Type)
		b.WriteString("#### [ Базовая информация ]\n")
		fmt.Fprintf(&b, "- **Целевой URL**: `%s`\n", f.URL)
		fmt.Fprintf(&b, "- **Параметр**: `%s`\n", orNA(f.Parameter))
		fmt.Fprintf(&b, "- **Payload**: `%s`\n", orNA(f.Payload))
		fmt.Fprintf(&b, "- **Доказательство**: %s\n\n", orNA(f.Evidence))

		b.WriteString("#### [ Исходный запрос ]\n")
		b.WriteString("```http\n")
		fmt.Fprintf(&b, "%s %s\n", f.FullRequest.Method, f.FullRequest.URL)
		for k, v := range f.FullRequest.Headers {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
		if f.FullRequest.Body != "" {
			fmt.Fprintf(&b, "\n%s\n", f.FullRequest.Body)
		}
		b.WriteString("```\n\n")
	}

	b.WriteString("---\n*Отчёт сгенерирован автоматически*\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
