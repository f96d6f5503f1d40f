package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

func identityRestore(placeholder string) string {
	return PlaceholderInner(placeholder)
}

func TestTokenizeRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"no placeholders here",
		"{{a}}",
		"id={{1}}&name={{admin}}&submit=ok",
		"prefix {{x}} middle {{y}} suffix",
		"{{a}}{{b}}",
	}
	for _, s := range tests {
		var rebuilt string
		for _, tok := range tokenize(s) {
			rebuilt += tok.text
		}
		assert.Equal(t, s, rebuilt)
	}
}

func TestRenderFieldPerturbsExactlyOnePoint(t *testing.T) {
	field := "id={{1}}&user={{admin}}&page={{2}}"

	out := renderField(field, "{{admin}}", "PAYLOAD", identityRestore)
	assert.Equal(t, "id=1&user=PAYLOAD&page=2", out)

	out = renderField(field, "{{1}}", "PAYLOAD", identityRestore)
	assert.Equal(t, "id=PAYLOAD&user=admin&page=2", out)

	// Ни один плейсхолдер не должен уцелеть в итоговой строке
	assert.NotContains(t, out, "{{")
}

func TestRenderFieldAdjacentPlaceholders(t *testing.T) {
	// Наивный replace на таких входах размазывает значения; токенизация - нет
	field := "{{a}}{{ab}}"
	out := renderField(field, "{{a}}", "X", identityRestore)
	assert.Equal(t, "Xab", out)
}

func TestTemplatePlaceholdersAuthoritativeSet(t *testing.T) {
	tpl := &models.RequestTemplate{
		Method:    "POST",
		TargetURL: "http://vuln.test/item?id={{7}}",
		Headers:   map[string]string{"X-Track": "{{trace}}"},
		Body:      "name={{bob}}",
	}
	got := TemplatePlaceholders(tpl)
	assert.Equal(t, map[string]string{
		"{{7}}":     "7",
		"{{trace}}": "trace",
		"{{bob}}":   "bob",
	}, got)
}

func TestEncodePayloadKeepsStructuralChars(t *testing.T) {
	// Символы &=/ не кодируются: нагрузки вида &admin=1 должны сохранять структуру
	assert.Equal(t, "&admin=1", EncodePayload("&admin=1"))
	assert.Equal(t, "a%20b", EncodePayload("a b"))
	assert.Equal(t, "%27%20or%20sleep%285%29%23", EncodePayload("' or sleep(5)#"))
	assert.Equal(t, "path/to=x", EncodePayload("path/to=x"))
}

func TestRenderProbeEncodingPolicy(t *testing.T) {
	restore := identityRestore
	payload := `<script>alert(1)</script>`

	t.Run("url field is percent-encoded", func(t *testing.T) {
		tpl := &models.RequestTemplate{
			Method:    "GET",
			TargetURL: "http://vuln.test/s?q={{hi}}",
		}
		u, _, _ := RenderProbe(tpl, "{{hi}}", payload, restore)
		assert.Equal(t, "http://vuln.test/s?q=%3Cscript%3Ealert%281%29%3C/script%3E", u)
	})

	t.Run("json body stays raw", func(t *testing.T) {
		tpl := &models.RequestTemplate{
			Method:    "POST",
			TargetURL: "http://vuln.test/api",
			Headers:   map[string]string{"Content-Type": "application/json"},
			Body:      `{"q":"{{hi}}"}`,
		}
		_, _, body := RenderProbe(tpl, "{{hi}}", payload, restore)
		assert.Equal(t, `{"q":"<script>alert(1)</script>"}`, body)
	})

	t.Run("form body is percent-encoded", func(t *testing.T) {
		tpl := &models.RequestTemplate{
			Method:    "POST",
			TargetURL: "http://vuln.test/login",
			Headers:   map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			Body:      "user={{admin}}&pass=x",
		}
		_, _, body := RenderProbe(tpl, "{{admin}}", "' or 1=1", restore)
		assert.Equal(t, "user=%27%20or%201=1&pass=x", body)
	})

	t.Run("missing content-type means no encoding", func(t *testing.T) {
		tpl := &models.RequestTemplate{
			Method:    "POST",
			TargetURL: "http://vuln.test/api",
			Body:      "<xml>{{v}}</xml>",
		}
		_, _, body := RenderProbe(tpl, "{{v}}", "a&b", restore)
		assert.Equal(t, "<xml>a&b</xml>", body)
	})

	t.Run("headers stay raw and inactive placeholders restore", func(t *testing.T) {
		tpl := &models.RequestTemplate{
			Method:    "GET",
			TargetURL: "http://vuln.test/?id={{1}}",
			Headers:   map[string]string{"X-Forwarded-For": "{{127.0.0.1}}"},
		}
		u, headers, _ := RenderProbe(tpl, "{{127.0.0.1}}", "1' or '1'='1", restore)
		assert.Equal(t, "1' or '1'='1", headers["X-Forwarded-For"])
		assert.Equal(t, "http://vuln.test/?id=1", u)
	})
}

func TestRenderProbeCustomRestore(t *testing.T) {
	// Реестр точек восстанавливает namespaced-плейсхолдеры в исходные значения
	tpl := &models.RequestTemplate{
		Method:    "GET",
		TargetURL: "http://vuln.test/?a={{1}}&b={{b:1}}",
	}
	restore := func(placeholder string) string {
		if placeholder == "{{b:1}}" {
			return "1"
		}
		return PlaceholderInner(placeholder)
	}
	u, _, _ := RenderProbe(tpl, "{{1}}", "X", restore)
	assert.Equal(t, "http://vuln.test/?a=X&b=1", u)
}
