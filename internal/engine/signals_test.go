package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuickRatio(t *testing.T) {
	assert.Equal(t, 1.0, QuickRatio("abc", "abc"))
	assert.Equal(t, 0.0, QuickRatio("", "abc"))
	assert.Equal(t, 0.0, QuickRatio("abc", ""))

	// Общие байты: 2*3/(3+6) = 0.6667
	assert.InDelta(t, 0.6667, QuickRatio("abc", "abcdef"), 0.0001)

	// Ничего общего
	assert.Equal(t, 0.0, QuickRatio("aaa", "bbb"))
}

func TestResponseSimilarityWindow(t *testing.T) {
	// Различия за пределами окна 4 KiB не влияют на сходство
	base := strings.Repeat("x", 5000)
	probe := strings.Repeat("x", 4096) + strings.Repeat("y", 904)
	assert.Equal(t, 1.0, ResponseSimilarity(base, probe))

	// Различия внутри окна - влияют
	probe2 := strings.Repeat("y", 4096)
	assert.Less(t, ResponseSimilarity(base, probe2), 0.5)
}

func TestContainsSQLError(t *testing.T) {
	positives := []string{
		"You have an error in your SQL syntax near ''",
		"Warning: mysql_fetch_array()",
		"PG::SyntaxError: ERROR: syntax error at or near \"'\"",
		"ORA-01756: quoted string not properly terminated",
		"Unclosed quotation mark after the character string",
	}
	for _, body := range positives {
		assert.True(t, ContainsSQLError(body), body)
	}

	assert.False(t, ContainsSQLError("<html>Welcome back</html>"))
	assert.False(t, ContainsSQLError(""))
}

func TestContainsErrorTrace(t *testing.T) {
	assert.True(t, ContainsErrorTrace("Traceback (most recent call last):\n  File \"/app/main.py\""))
	assert.True(t, ContainsErrorTrace("Exception in thread \"main\" java.lang.NullPointerException\n\tat java.base"))
	assert.False(t, ContainsErrorTrace("all good"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdef", 2))
}
