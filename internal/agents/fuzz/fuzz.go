// Package fuzz - воркер фаззинга параметров и значений (discovery + HPP).
package fuzz

import (
	"context"
	"fmt"
	"log"

	"github.com/BetterCallFirewall/aegisx/internal/agents/base"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/prompts"
)

const responseSliceLen = 500

// ParamIndex - срез интерфейса KV-хранилища: словарь параметров хоста,
// накопленный перехватчиком. Только чтение.
type ParamIndex interface {
	HostParams(ctx context.Context, host string) ([]string, error)
}

// NewWorker собирает Fuzz-воркер. Статических нагрузок нет: каждый раунд
// генерирует LLM, подкреплённый историческим словарём параметров хоста.
func NewWorker(deps base.Deps, params ParamIndex) *base.Worker {
	return base.NewWorker(base.VulnSpec{
		Token:       "fuzz",
		DisplayName: "Fuzz",
		FindingType: "Anomaly/Vulnerability",
		GeneratorPrompt: func(ctx context.Context, s *base.ScanState) string {
			var history []string
			if params != nil {
				host := s.Global.Host()
				var err error
				history, err = params.HostParams(ctx, host)
				if err != nil {
					// Словарь - подспорье, а не необходимость
					log.Printf("⚠️ Failed to fetch host params for %s: %v", host, err)
					history = nil
				}
			}
			return prompts.BuildFuzzGenerator(history)
		},
		AnalyzerPrompt: prompts.FuzzAnalyzer,
		Summarize:      summarize,
		AnalyzerUser: func(s *base.ScanState, resultsJSON string) string {
			return fmt.Sprintf("Фрагмент исходного ответа: %s\nРезультаты тестов: %s",
				engine.TruncateString(s.Global.ResponseBody, 500), resultsJSON)
		},
	}, deps)
}

// summarize: fuzz интересуют аномалии, поэтому срез ответа прикладывается
// только при заметном отличии от базового.
func summarize(s *base.ScanState) []models.ProbeSummary {
	summaries := make([]models.ProbeSummary, 0, len(s.Worker.TestResults))
	for _, r := range s.Worker.TestResults {
		item := models.ProbeSummary{
			Parameter:  r.Parameter,
			Payload:    r.Payload,
			Status:     r.Status,
			Elapsed:    r.Elapsed,
			LenDiff:    r.LenDiff,
			Similarity: r.Similarity,
		}
		if r.Similarity < 0.99 {
			item.ResponseSlice = engine.TruncateString(r.Response, responseSliceLen)
		}
		summaries = append(summaries, item)
	}
	return summaries
}
