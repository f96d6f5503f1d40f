package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFuzzGenerator(t *testing.T) {
	prompt := BuildFuzzGenerator([]string{"id", "page", "user_id"})
	assert.Contains(t, prompt, "id, page, user_id")
	assert.NotContains(t, prompt, "{history_params}")

	empty := BuildFuzzGenerator(nil)
	assert.Contains(t, empty, "None")
	assert.NotContains(t, empty, "{history_params}")
}

func TestPromptsDeclareJSONContract(t *testing.T) {
	// Каждый промпт генератора фиксирует структуру request/test_cases,
	// каждый промпт аналитика - поля вердикта
	for _, p := range []string{SQLiGenerator, XSSGenerator, FuzzGenerator} {
		assert.True(t, strings.Contains(p, `"test_cases"`), "generator prompt must pin test_cases shape")
		assert.True(t, strings.Contains(p, `"request"`), "generator prompt must pin request shape")
	}
	for _, p := range []string{SQLiAnalyzer, XSSAnalyzer, FuzzAnalyzer} {
		assert.Contains(t, p, `"is_vulnerable"`)
		assert.Contains(t, p, `"decision"`)
		assert.Contains(t, p, "FOUND/RETRY/GIVE_UP")
	}
}
