package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// Выделение точек внедрения из перехваченного запроса: Query-параметры,
// параметры тела (JSON-объект либо form-urlencoded) и эвристические
// RESTful-сегменты пути.

// Сегмент пути считается параметром, если он целиком числовой, либо длинный
// идентификатор с дефисом (UUID и похожие токены).
var digitsOnlyRe = regexp.MustCompile(`^[0-9]+$`)

func isPathParam(segment string) bool {
	if segment == "" {
		return false
	}
	if digitsOnlyRe.MatchString(segment) {
		return true
	}
	return len(segment) > 30 && strings.Contains(segment, "-")
}

// pointBuilder следит за уникальностью плейсхолдеров внутри одного запроса:
// совпадающие исходные значения различаются по имени ({{name:value}}).
type pointBuilder struct {
	points []models.InjectionPoint
	used   map[string]bool
}

func newPointBuilder() *pointBuilder {
	return &pointBuilder{used: make(map[string]bool)}
}

func (b *pointBuilder) add(name, value string, kind models.PointKind) {
	placeholder := fmt.Sprintf("{{%s}}", value)
	if b.used[placeholder] {
		placeholder = fmt.Sprintf("{{%s:%s}}", name, value)
		if b.used[placeholder] {
			return
		}
	}
	b.used[placeholder] = true
	b.points = append(b.points, models.InjectionPoint{
		Name:          name,
		OriginalValue: value,
		Kind:          kind,
		Placeholder:   placeholder,
	})
}

// splitPairs разбирает сырую query/form строку, сохраняя порядок пар.
// Значения не декодируются: шаблоны строятся над сырым текстом запроса.
func splitPairs(raw string) [][2]string {
	var pairs [][2]string
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		if idx := strings.Index(pair, "="); idx >= 0 {
			pairs = append(pairs, [2]string{pair[:idx], pair[idx+1:]})
		}
	}
	return pairs
}

// jsonScalarText возвращает текст скалярного значения так, как оно стоит
// в теле: строки без кавычек, остальное - как сериализует encoding/json.
func jsonScalarText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64, bool, json.Number:
		raw, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(raw), true
	default:
		// Вложенные объекты и массивы точками не считаем
		return "", false
	}
}

// DerivePoints извлекает все точки внедрения запроса в детерминированном
// порядке: query, тело, путь.
func DerivePoints(targetURL, body string) []models.InjectionPoint {
	b := newPointBuilder()

	// 1. Query-параметры
	pathPart := targetURL
	if idx := strings.Index(targetURL, "?"); idx >= 0 {
		pathPart = targetURL[:idx]
		for _, pair := range splitPairs(targetURL[idx+1:]) {
			if pair[0] != "" {
				b.add(pair[0], pair[1], models.KindQuery)
			}
		}
	}

	// 2. Параметры тела: сначала пробуем JSON-объект, затем form
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		if strings.HasPrefix(trimmed, "{") {
			dec := json.NewDecoder(strings.NewReader(trimmed))
			dec.UseNumber()
			var obj map[string]interface{}
			if err := dec.Decode(&obj); err == nil {
				// Порядок ключей map недетерминирован - сортируем по позиции в теле
				for _, key := range jsonKeysInOrder(trimmed, obj) {
					if text, ok := jsonScalarText(obj[key]); ok {
						b.add(key, text, models.KindBodyJSON)
					}
				}
			}
		} else if strings.Contains(trimmed, "=") {
			for _, pair := range splitPairs(trimmed) {
				if pair[0] != "" {
					b.add(pair[0], pair[1], models.KindBodyForm)
				}
			}
		}
	}

	// 3. Эвристические параметры пути
	if idx := strings.Index(pathPart, "://"); idx >= 0 {
		rest := pathPart[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			pathPart = rest[slash:]
		} else {
			pathPart = ""
		}
	}
	for i, segment := range strings.Split(pathPart, "/") {
		if isPathParam(segment) {
			b.add(fmt.Sprintf("path[%d]", i), segment, models.KindPath)
		}
	}

	return b.points
}

// jsonKeysInOrder возвращает ключи объекта в порядке их появления в тексте.
func jsonKeysInOrder(body string, obj map[string]interface{}) []string {
	type keyPos struct {
		key string
		pos int
	}
	positions := make([]keyPos, 0, len(obj))
	for key := range obj {
		needle := fmt.Sprintf("%q", key)
		pos := strings.Index(body, needle)
		if pos < 0 {
			pos = len(body)
		}
		positions = append(positions, keyPos{key, pos})
	}
	for i := 1; i < len(positions); i++ {
		for j := i; j > 0 && positions[j].pos < positions[j-1].pos; j-- {
			positions[j], positions[j-1] = positions[j-1], positions[j]
		}
	}
	keys := make([]string, len(positions))
	for i, kp := range positions {
		keys[i] = kp.key
	}
	return keys
}

// BuildFuzzedTemplate строит шаблон первого раунда: значения выбранных точек
// заменяются их плейсхолдерами прямо в сыром тексте запроса. Каждая точка
// затрагивает ровно одно вхождение.
func BuildFuzzedTemplate(method, targetURL string, headers map[string]string, body string, points []models.InjectionPoint) models.RequestTemplate {
	tpl := models.RequestTemplate{
		Method:    method,
		TargetURL: targetURL,
		Headers:   headers,
		Body:      body,
	}

	for _, p := range points {
		switch p.Kind {
		case models.KindQuery:
			tpl.TargetURL = substitutePair(tpl.TargetURL, p)
		case models.KindBodyForm:
			tpl.Body = substitutePair(tpl.Body, p)
		case models.KindBodyJSON:
			tpl.Body = substituteJSONValue(tpl.Body, p)
		case models.KindPath:
			tpl.TargetURL = substitutePathSegment(tpl.TargetURL, p)
		}
	}
	return tpl
}

// substitutePair заменяет значение пары name=value на плейсхолдер, не
// трогая одноимённые подстроки в других парах.
func substitutePair(s string, p models.InjectionPoint) string {
	re := regexp.MustCompile(`(^|[?&])` + regexp.QuoteMeta(p.Name) + `=` + regexp.QuoteMeta(p.OriginalValue) + `($|[&#])`)
	replaced := false
	return re.ReplaceAllStringFunc(s, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		sub := re.FindStringSubmatch(m)
		return sub[1] + p.Name + `=` + p.Placeholder + sub[2]
	})
}

// substituteJSONValue заменяет значение ключа в сыром JSON-теле.
func substituteJSONValue(body string, p models.InjectionPoint) string {
	quotedName := regexp.QuoteMeta(fmt.Sprintf("%q", p.Name))
	quotedValue := regexp.QuoteMeta(fmt.Sprintf("%q", p.OriginalValue))
	bareValue := regexp.QuoteMeta(p.OriginalValue)
	re := regexp.MustCompile(fmt.Sprintf(`(%s\s*:\s*)(%s|%s)`, quotedName, quotedValue, bareValue))
	replaced := false
	return re.ReplaceAllStringFunc(body, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		sub := re.FindStringSubmatch(m)
		if strings.HasPrefix(sub[2], `"`) {
			return sub[1] + `"` + p.Placeholder + `"`
		}
		return sub[1] + p.Placeholder
	})
}

// substitutePathSegment заменяет ровно тот сегмент пути, из которого точка
// была выделена (индекс зашит в имя точки).
func substitutePathSegment(targetURL string, p models.InjectionPoint) string {
	prefix := ""
	path := targetURL
	suffix := ""
	if idx := strings.Index(targetURL, "://"); idx >= 0 {
		rest := targetURL[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			prefix = targetURL[:idx+3+slash]
			path = rest[slash:]
		} else {
			return targetURL
		}
	}
	if q := strings.Index(path, "?"); q >= 0 {
		suffix = path[q:]
		path = path[:q]
	}

	var segIdx int
	if _, err := fmt.Sscanf(p.Name, "path[%d]", &segIdx); err != nil {
		return targetURL
	}
	segments := strings.Split(path, "/")
	if segIdx < 0 || segIdx >= len(segments) || segments[segIdx] != p.OriginalValue {
		return targetURL
	}
	segments[segIdx] = p.Placeholder
	return prefix + strings.Join(segments, "/") + suffix
}

// BuildStaticPacket собирает пакет первого раунда без участия LLM:
// фуззированный шаблон по первым maxPoints точкам и декартово произведение
// точка x полезная нагрузка.
func BuildStaticPacket(method, targetURL string, headers map[string]string, body string, points []models.InjectionPoint, payloads []string, maxPoints int) *models.StructuredPacket {
	if len(points) == 0 || len(payloads) == 0 {
		return nil
	}
	target := points
	if maxPoints > 0 && len(target) > maxPoints {
		target = target[:maxPoints]
	}

	tpl := BuildFuzzedTemplate(method, targetURL, headers, body, target)

	cases := make([]models.TestCase, 0, len(target))
	for _, p := range target {
		cases = append(cases, models.TestCase{
			Parameter: p.Placeholder,
			Payload:   append(models.PayloadList(nil), payloads...),
		})
	}
	return &models.StructuredPacket{Request: tpl, TestCases: cases}
}
