package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

func TestDerivePointsQuery(t *testing.T) {
	points := DerivePoints("http://vuln.test/q?id=1&name=admin&flag=", "")

	require.Len(t, points, 3)
	assert.Equal(t, "id", points[0].Name)
	assert.Equal(t, "1", points[0].OriginalValue)
	assert.Equal(t, models.KindQuery, points[0].Kind)
	assert.Equal(t, "{{1}}", points[0].Placeholder)
	assert.Equal(t, "{{admin}}", points[1].Placeholder)
}

func TestDerivePointsFormBody(t *testing.T) {
	points := DerivePoints("http://vuln.test/login", "user=bob&pass=secret")

	require.Len(t, points, 2)
	assert.Equal(t, models.KindBodyForm, points[0].Kind)
	assert.Equal(t, "user", points[0].Name)
	assert.Equal(t, "{{bob}}", points[0].Placeholder)
}

func TestDerivePointsJSONBody(t *testing.T) {
	points := DerivePoints("http://vuln.test/api", `{"name":"bob","age":30,"active":true,"meta":{"x":1}}`)

	require.Len(t, points, 3)
	assert.Equal(t, "name", points[0].Name)
	assert.Equal(t, "bob", points[0].OriginalValue)
	assert.Equal(t, models.KindBodyJSON, points[0].Kind)
	assert.Equal(t, "age", points[1].Name)
	assert.Equal(t, "30", points[1].OriginalValue)
	assert.Equal(t, "active", points[2].Name)
	// Вложенный объект meta точкой не считается
}

func TestDerivePointsPathHeuristics(t *testing.T) {
	points := DerivePoints("http://vuln.test/api/user/123/orders", "")
	require.Len(t, points, 1)
	assert.Equal(t, models.KindPath, points[0].Kind)
	assert.Equal(t, "123", points[0].OriginalValue)
	assert.Equal(t, "path[3]", points[0].Name)

	// Длинный дефисный идентификатор (UUID-подобный)
	points = DerivePoints("http://vuln.test/doc/550e8400-e29b-41d4-a716-446655440000", "")
	require.Len(t, points, 1)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", points[0].OriginalValue)

	// Обычные сегменты не трогаем
	points = DerivePoints("http://vuln.test/api/users/profile", "")
	assert.Empty(t, points)
}

func TestDerivePointsPlaceholderCollision(t *testing.T) {
	points := DerivePoints("http://vuln.test/q?a=1&b=1", "")

	require.Len(t, points, 2)
	assert.Equal(t, "{{1}}", points[0].Placeholder)
	assert.Equal(t, "{{b:1}}", points[1].Placeholder)

	// Множество плейсхолдеров уникально
	seen := map[string]bool{}
	for _, p := range points {
		assert.False(t, seen[p.Placeholder])
		seen[p.Placeholder] = true
	}
}

func TestBuildFuzzedTemplate(t *testing.T) {
	url := "http://vuln.test/q?id=1&name=admin"
	points := DerivePoints(url, "")
	tpl := BuildFuzzedTemplate("GET", url, map[string]string{"Host": "vuln.test"}, "", points)

	assert.Equal(t, "http://vuln.test/q?id={{1}}&name={{admin}}", tpl.TargetURL)
	assert.Equal(t, "GET", tpl.Method)
}

func TestBuildFuzzedTemplateDoesNotBleedAcrossPairs(t *testing.T) {
	// Значение "1" встречается и в id, и внутри значения other: замена
	// не должна задеть чужие пары
	url := "http://vuln.test/q?id=1&other=a1b"
	points := DerivePoints(url, "")
	tpl := BuildFuzzedTemplate("GET", url, nil, "", points)

	assert.Equal(t, "http://vuln.test/q?id={{1}}&other={{a1b}}", tpl.TargetURL)
}

func TestBuildFuzzedTemplateJSON(t *testing.T) {
	body := `{"name":"bob","age":30}`
	points := DerivePoints("http://vuln.test/api", body)
	tpl := BuildFuzzedTemplate("POST", "http://vuln.test/api",
		map[string]string{"Content-Type": "application/json"}, body, points)

	assert.Equal(t, `{"name":"{{bob}}","age":{{30}}}`, tpl.Body)
}

func TestBuildFuzzedTemplatePath(t *testing.T) {
	url := "http://vuln.test/api/user/123?full=1"
	points := DerivePoints(url, "")

	// Точки: full (query) и 123 (path)
	require.Len(t, points, 2)
	tpl := BuildFuzzedTemplate("GET", url, nil, "", points)
	assert.Equal(t, "http://vuln.test/api/user/{{123}}?full={{1}}", tpl.TargetURL)
}

func TestBuildStaticPacket(t *testing.T) {
	url := "http://vuln.test/q?id=1&name=admin&c=3&d=4"
	points := DerivePoints(url, "")
	require.Len(t, points, 4)

	packet := BuildStaticPacket("GET", url, nil, "", points, []string{"p1", "p2"}, 3)
	require.NotNil(t, packet)

	// Только первые 3 точки, по 2 нагрузки на каждую
	require.Len(t, packet.TestCases, 3)
	assert.Equal(t, "{{1}}", packet.TestCases[0].Parameter)
	assert.Equal(t, models.PayloadList{"p1", "p2"}, packet.TestCases[0].Payload)

	// Четвёртая точка не фуззится и остаётся литералом в шаблоне
	assert.Contains(t, packet.Request.TargetURL, "d=4")
	assert.Contains(t, packet.Request.TargetURL, "c={{3}}")
}

func TestBuildStaticPacketEmptyInputs(t *testing.T) {
	assert.Nil(t, BuildStaticPacket("GET", "http://a/", nil, "", nil, []string{"x"}, 3))
	points := DerivePoints("http://a/?q=1", "")
	assert.Nil(t, BuildStaticPacket("GET", "http://a/?q=1", nil, "", points, nil, 3))
}
