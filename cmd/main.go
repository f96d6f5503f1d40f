package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/BetterCallFirewall/aegisx/internal/agents/base"
	"github.com/BetterCallFirewall/aegisx/internal/agents/fuzz"
	"github.com/BetterCallFirewall/aegisx/internal/agents/manager"
	"github.com/BetterCallFirewall/aegisx/internal/agents/sqli"
	"github.com/BetterCallFirewall/aegisx/internal/agents/xss"
	"github.com/BetterCallFirewall/aegisx/internal/api"
	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/interceptor"
	"github.com/BetterCallFirewall/aegisx/internal/llm"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/orchestrator"
	"github.com/BetterCallFirewall/aegisx/internal/report"
	"github.com/BetterCallFirewall/aegisx/internal/storage"
	"github.com/BetterCallFirewall/aegisx/internal/websocket"
)

// scanObserver доводит завершённый скан до побочных выходов: Markdown-отчёт
// и события фронтенду.
type scanObserver struct {
	reports *report.Generator
	hub     *websocket.Hub
}

func (o *scanObserver) ScanFinished(state *models.GlobalState) {
	if len(state.Findings) > 0 && o.reports != nil {
		path, err := o.reports.Generate(state.Findings, state.RequestID)
		if err != nil {
			log.Printf("⚠️ Failed to render report for %s: %v", state.RequestID, err)
		} else {
			log.Printf("📝 Report written: %s", path)
		}
	}
	if o.hub != nil {
		for i := range state.Findings {
			o.hub.BroadcastFinding(&state.Findings[i])
		}
		o.hub.BroadcastScanDone(state)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилища
	redisStore, err := storage.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to init redis store: %v", err)
	}
	defer redisStore.Close()
	if err := redisStore.Ping(ctx); err != nil {
		log.Fatalf("Redis is unreachable at %s: %v", cfg.RedisURL, err)
	}

	var findingStore *storage.FindingStore
	if cfg.PostgresURL != "" {
		findingStore, err = storage.NewFindingStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to init findings store: %v", err)
		}
		defer findingStore.Close()
	} else {
		log.Printf("⚠️ POSTGRES_URL is empty, findings will not be persisted")
	}

	// LLM-провайдер с аудитом всех взаимодействий
	auditor := llm.NewAuditor("logs/llm_audit", cfg.LogPromptInteraction)
	provider := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, auditor)

	// Genkit для трассировки flow сканирования
	genkitApp := genkit.Init(ctx)

	// Движок и воркеры
	executor := engine.NewProbeExecutor(cfg)
	deps := base.Deps{
		Provider: provider,
		Executor: executor,
		Config:   cfg,
	}
	if findingStore != nil {
		deps.Findings = findingStore
	}
	workers := []*base.Worker{
		sqli.NewWorker(deps),
		xss.NewWorker(deps),
		fuzz.NewWorker(deps, redisStore),
	}

	orch := orchestrator.New(genkitApp, manager.New(provider, cfg), workers)

	// Побочные выходы сканов
	hub := websocket.NewHub()
	go hub.Run()

	reports, err := report.NewGenerator("reports")
	if err != nil {
		log.Fatalf("Failed to init report generator: %v", err)
	}

	// Раннер задач
	runner := engine.NewTaskRunner(cfg, redisStore, orch, &scanObserver{reports: reports, hub: hub})
	go runner.Run(ctx)

	// Перехватывающий прокси
	projectName := os.Getenv("PROJECT_NAME")
	if projectName == "" {
		projectName = "Default"
	}
	proxy := interceptor.NewProxy(cfg.MITMProxyPort, interceptor.NewHandler(cfg, redisStore, projectName))
	go func() {
		if err := proxy.ListenAndServe(); err != nil {
			log.Printf("Proxy server stopped: %v", err)
		}
	}()

	// Web-поверхность
	var apiFindings api.FindingsReader
	if findingStore != nil {
		apiFindings = findingStore
	}
	apiServer := api.NewServer(cfg.APIListenAddr, apiFindings, hub)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil {
			log.Printf("API server stopped: %v", err)
		}
	}()

	log.Printf("=== AegisX scanner is up | proxy :%d | api %s ===", cfg.MITMProxyPort, cfg.APIListenAddr)

	// Кооперативная остановка: перестаём качать очередь и даём серверам
	// закрыть соединения. Сканы в полёте main не дожидается: процесс
	// завершается сразу после остановки серверов
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = proxy.Shutdown(shutdownCtx)
	_ = apiServer.Shutdown(shutdownCtx)

	log.Println("Bye")
}
