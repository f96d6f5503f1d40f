package engine

import (
	"math"
	"regexp"
	"strings"
)

// Сигналы различий между базовым и пробным ответами.
// Быстрые проверки без LLM: сходство, следы SQL-ошибок, stack traces.

// similarityWindow - сколько байт каждого ответа участвует в сравнении.
// Хвост длинных страниц почти не несёт различительного сигнала,
// а квадратичная стоимость сравнения - несёт.
const similarityWindow = 4096

// QuickRatio вычисляет быстрое сходство двух строк (0.0 - 1.0) по
// мультимножествам байтов: 2*M/T, где M - число общих байтов, T - суммарная
// длина. Верхняя оценка настоящего diff-сходства, но на порядок дешевле.
func QuickRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var countB [256]int
	for i := 0; i < len(b); i++ {
		countB[b[i]]++
	}

	matches := 0
	for i := 0; i < len(a); i++ {
		if countB[a[i]] > 0 {
			countB[a[i]]--
			matches++
		}
	}

	ratio := 2.0 * float64(matches) / float64(len(a)+len(b))
	// Округление до 4 знаков, чтобы сводки для LLM были стабильными
	return math.Round(ratio*10000) / 10000
}

// ResponseSimilarity сравнивает первые similarityWindow байт двух тел ответов.
func ResponseSimilarity(baseline, probe string) float64 {
	if len(baseline) > similarityWindow {
		baseline = baseline[:similarityWindow]
	}
	if len(probe) > similarityWindow {
		probe = probe[:similarityWindow]
	}
	return QuickRatio(baseline, probe)
}

var sqlErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sql syntax`),
	regexp.MustCompile(`mysql_`),
	regexp.MustCompile(`postgresql`),
	regexp.MustCompile(`ora-[0-9]+`),
	regexp.MustCompile(`sqlite`),
	regexp.MustCompile(`syntax error at or near`),
	regexp.MustCompile(`unclosed quotation mark`),
	regexp.MustCompile(`quoted string not properly terminated`),
	regexp.MustCompile(`invalid column name`),
	regexp.MustCompile(`table or view does not exist`),
	regexp.MustCompile(`ambiguous column name`),
	regexp.MustCompile(`you have an error in your sql`),
}

// ContainsSQLError проверяет наличие характерных SQL-ошибок в теле ответа.
func ContainsSQLError(body string) bool {
	bodyLower := strings.ToLower(body)
	for _, pattern := range sqlErrorPatterns {
		if pattern.MatchString(bodyLower) {
			return true
		}
	}
	return false
}

var errorTracePatterns = []string{
	"at java.",
	"at org.",
	"at com.",
	"traceback (most recent call last)",
	"file \"/",
	"exception in thread",
	"stack trace:",
	"goroutine ",
}

// ContainsErrorTrace проверяет наличие stack traces в теле ответа.
func ContainsErrorTrace(body string) bool {
	bodyLower := strings.ToLower(body)
	for _, pattern := range errorTracePatterns {
		if strings.Contains(bodyLower, pattern) {
			return true
		}
	}
	return false
}

// TruncateString обрезает строку до указанной длины для сводок и логов.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
