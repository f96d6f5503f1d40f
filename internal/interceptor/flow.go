package interceptor

import (
	"net/http"
	"strings"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// buildFlow превращает пару net/http запрос-ответ в неизменяемый
// CapturedFlow границы перехвата.
func buildFlow(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte) *models.CapturedFlow {
	flow := &models.CapturedFlow{
		Request: models.CapturedRequest{
			Method:     req.Method,
			PrettyURL:  prettyURL(req),
			PrettyHost: hostOnly(req.Host),
			Path:       req.URL.Path,
			Headers:    flattenHeaders(req.Header),
			Text:       string(reqBody),
			Content:    reqBody,
		},
	}
	if req.Host != "" {
		flow.Request.Headers["Host"] = req.Host
	}
	if resp != nil {
		flow.Response = &models.CapturedResponse{
			Headers: flattenHeaders(resp.Header),
			Text:    string(respBody),
		}
	}
	return flow
}

// prettyURL восстанавливает абсолютный URL запроса: в MITM-режиме URL
// запроса может быть относительным.
func prettyURL(req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}

// hostOnly отрезает порт от host:port.
func hostOnly(host string) string {
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host[idx:], "]") {
		return host[:idx]
	}
	return host
}

// flattenHeaders сводит многозначные заголовки к первой паре: для задач
// сканирования повторные значения не несут сигнала.
func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, values := range header {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}
