package base

import "github.com/BetterCallFirewall/aegisx/internal/models"

// HistoryLimits ограничивает накапливаемый контекст воркера: свод истории
// проб и фидбек аналитика растут с каждым повтором, а размер промпта для
// LLM обязан оставаться детерминированным.
type HistoryLimits struct {
	MaxHistoryResults int
	MaxFeedback       int
}

func DefaultHistoryLimits() HistoryLimits {
	return HistoryLimits{
		MaxHistoryResults: 100,
		MaxFeedback:       20,
	}
}

// TrimHistory оставляет последние MaxHistoryResults записей.
func (l HistoryLimits) TrimHistory(history []models.ProbeSummary) []models.ProbeSummary {
	if len(history) <= l.MaxHistoryResults {
		return history
	}
	return history[len(history)-l.MaxHistoryResults:]
}

// TrimFeedback оставляет последние MaxFeedback записей.
func (l HistoryLimits) TrimFeedback(feedback []string) []string {
	if len(feedback) <= l.MaxFeedback {
		return feedback
	}
	return feedback[len(feedback)-l.MaxFeedback:]
}
