package interceptor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/elazarl/goproxy"
)

// Сколько байт запроса/ответа читается в перехваченный обмен.
// Хвост огромных ответов не нужен ни диффингу, ни аналитику.
const maxCaptureBytes = 1 << 20

// Proxy - MITM-слой на goproxy: на каждый завершённый обмен строит
// CapturedFlow и отдаёт его обработчику. Запросы не модифицируются и
// не переигрываются.
type Proxy struct {
	handler *Handler
	server  *http.Server
}

func NewProxy(port int, handler *Handler) *Proxy {
	p := goproxy.NewProxyHttpServer()
	p.OnRequest().HandleConnect(goproxy.AlwaysMitm)

	// Тело запроса читается на фазе запроса и прячется в UserData:
	// к фазе ответа оно уже вычитано апстримом
	p.OnRequest().DoFunc(func(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		if req.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(req.Body, maxCaptureBytes))
			// Апстрим получает захваченное начало и непрочитанный хвост
			req.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(raw), req.Body), req.Body}
			if err == nil {
				ctx.UserData = raw
			}
		}
		return req, nil
	})

	p.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		if resp == nil || ctx.Req == nil {
			return resp
		}

		var reqBody []byte
		if raw, ok := ctx.UserData.([]byte); ok {
			reqBody = raw
		}

		var respBody []byte
		if resp.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptureBytes))
			if err != nil {
				log.Printf("⚠️ Failed to read intercepted response body: %v", err)
			}
			respBody = raw
			resp.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(raw), resp.Body), resp.Body}
		}

		flow := buildFlow(ctx.Req, reqBody, resp, respBody)

		// Обработка в фоне: прокси не должен ждать Redis
		go func() {
			if err := handler.ProcessFlow(context.Background(), flow); err != nil {
				log.Printf("⚠️ Failed to process intercepted flow: %v", err)
			}
		}()
		return resp
	})

	return &Proxy{
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: p,
		},
	}
}

// ListenAndServe блокирует до остановки сервера.
func (p *Proxy) ListenAndServe() error {
	log.Printf("🚦 MITM proxy listening on %s", p.server.Addr)
	return p.server.ListenAndServe()
}

func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.server.Shutdown(ctx)
}
