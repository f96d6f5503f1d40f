package engine

import (
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// Подстановка плейсхолдеров. Инвариант: одна проба возмущает ровно одну
// точку внедрения, все остальные плейсхолдеры восстанавливаются в исходные
// значения. Наивный strings.Replace здесь опасен - перекрывающиеся
// плейсхолдеры затирают друг друга, поэтому каждое строковое поле сначала
// токенизируется по регулярному выражению, а затем рендерится по токенам.

var placeholderRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// token - элемент токенизированного поля: либо литерал, либо плейсхолдер.
type token struct {
	text          string
	isPlaceholder bool
}

// tokenize разбивает строку на упорядоченный список токенов.
// Для плейсхолдеров text хранит полную форму {{...}}.
func tokenize(s string) []token {
	if s == "" {
		return nil
	}
	var tokens []token
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			tokens = append(tokens, token{text: s[last:loc[0]]})
		}
		tokens = append(tokens, token{text: s[loc[0]:loc[1]], isPlaceholder: true})
		last = loc[1]
	}
	if last < len(s) {
		tokens = append(tokens, token{text: s[last:]})
	}
	return tokens
}

// PlaceholderInner возвращает внутренний текст плейсхолдера ({{x}} -> x).
func PlaceholderInner(placeholder string) string {
	m := placeholderRe.FindStringSubmatch(placeholder)
	if m == nil {
		return placeholder
	}
	return m[1]
}

// TemplatePlaceholders сканирует все строковые поля шаблона и возвращает
// авторитетное множество плейсхолдеров: placeholder -> внутренний текст.
func TemplatePlaceholders(tpl *models.RequestTemplate) map[string]string {
	out := make(map[string]string)
	collect := func(s string) {
		for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
			out[m[0]] = m[1]
		}
	}
	collect(tpl.TargetURL)
	collect(tpl.Body)
	for _, v := range tpl.Headers {
		collect(v)
	}
	return out
}

// quoteURL кодирует строку процентным кодированием в духе
// urllib.parse.quote: невозмущаемые символы (буквы, цифры, -._~) и символы
// из safe остаются как есть, всё прочее - %XX.
func quoteURL(s, safe string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		case strings.IndexByte(safe, c) >= 0:
			b.WriteByte(c)
		default:
			const hex = "0123456789ABCDEF"
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		}
	}
	return b.String()
}

// EncodePayload кодирует полезную нагрузку для URL и form-контекстов,
// сохраняя структурные символы запроса (&=/) нетронутыми.
func EncodePayload(payload string) string {
	return quoteURL(payload, "&=/")
}

// renderField рендерит одно строковое поле: активный плейсхолдер получает
// (закодированную) полезную нагрузку, остальные восстанавливаются через
// restore. Литералы проходят без изменений.
func renderField(s, activePlaceholder, encodedPayload string, restore func(placeholder string) string) string {
	tokens := tokenize(s)
	if tokens == nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, tok := range tokens {
		switch {
		case !tok.isPlaceholder:
			b.WriteString(tok.text)
		case tok.text == activePlaceholder:
			b.WriteString(encodedPayload)
		default:
			b.WriteString(restore(tok.text))
		}
	}
	return b.String()
}

// RenderProbe собирает конкретный запрос из шаблона для одной пробы.
// Кодирование: URL-поля и form-тела кодируются, JSON/XML/plain тела и
// заголовки - нет. Отсутствующий Content-Type трактуется как "не кодировать".
func RenderProbe(tpl *models.RequestTemplate, activePlaceholder, payload string, restore func(placeholder string) string) (urlStr string, headers map[string]string, body string) {
	urlStr = renderField(tpl.TargetURL, activePlaceholder, EncodePayload(payload), restore)

	headers = make(map[string]string, len(tpl.Headers))
	contentType := ""
	for k, v := range tpl.Headers {
		headers[k] = renderField(v, activePlaceholder, payload, restore)
		if strings.EqualFold(k, "Content-Type") {
			contentType = strings.ToLower(v)
		}
	}

	if tpl.Body != "" {
		isForm := strings.Contains(contentType, "application/x-www-form-urlencoded")
		encoded := payload
		if isForm {
			encoded = EncodePayload(payload)
		}
		body = renderField(tpl.Body, activePlaceholder, encoded, restore)
	}
	return urlStr, headers, body
}
