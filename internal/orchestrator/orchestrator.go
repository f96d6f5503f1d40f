// Package orchestrator - исполнитель графа сканирования: менеджер решает,
// какие воркеры запускать, воркеры работают параллельно, их под-записи
// сливаются в глобальное состояние в единственной точке слияния.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/BetterCallFirewall/aegisx/internal/agents/base"
	"github.com/BetterCallFirewall/aegisx/internal/agents/manager"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

type Orchestrator struct {
	manager *manager.Manager
	workers map[string]*base.Worker

	scanFlow *genkitcore.Flow[*models.GlobalState, *models.GlobalState, struct{}]
}

// New регистрирует scanFlow в genkit: каждый скан трассируется как flow,
// отдельный спан получает только диспетчер; воркеры собственных спанов не
// получают.
func New(g *genkit.Genkit, mgr *manager.Manager, workers []*base.Worker) *Orchestrator {
	o := &Orchestrator{
		manager: mgr,
		workers: make(map[string]*base.Worker, len(workers)),
	}
	for _, w := range workers {
		o.workers[w.Token()] = w
	}

	o.scanFlow = genkit.DefineFlow(
		g, "scanFlow",
		func(ctx context.Context, state *models.GlobalState) (*models.GlobalState, error) {
			// Шаг 1: диспетчеризация (traced)
			tasks, err := genkit.Run(ctx, "manager-dispatch", func() ([]string, error) {
				return o.manager.Analyze(ctx, state)
			})
			if err != nil {
				return nil, fmt.Errorf("manager dispatch failed: %w", err)
			}
			state.Tasks = tasks
			if len(tasks) == 0 {
				log.Printf("ℹ️ No tasks dispatched for %s, scan complete", state.TargetURL)
				return state, nil
			}

			// Шаг 2: параллельный fan-out воркеров
			results := o.runWorkers(ctx, state, tasks)

			// Шаг 3: точка слияния. Редьюсеры: findings - конкатенация,
			// под-записи воркеров присваиваются целиком
			for _, ws := range results {
				state.MergeWorker(ws)
			}
			return state, nil
		},
	)
	return o
}

// runWorkers запускает по воркеру на задачу. Паника или ошибка одного
// воркера логируется и не трогает остальных.
func (o *Orchestrator) runWorkers(ctx context.Context, state *models.GlobalState, tasks []string) []*models.WorkerState {
	var (
		mu      sync.Mutex
		results []*models.WorkerState
		wg      sync.WaitGroup
	)

	for _, task := range tasks {
		worker, ok := o.workers[task]
		if !ok {
			log.Printf("⚠️ No worker registered for task %q", task)
			continue
		}

		wg.Add(1)
		go func(token string, worker *base.Worker) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ %s worker panicked: %v", token, r)
				}
			}()

			ws, err := worker.Run(ctx, state)
			if err != nil {
				// Частичный результат воркера всё равно сливается:
				// находки до сбоя не теряются
				log.Printf("❌ %s worker failed: %v", token, err)
			}
			if ws != nil {
				mu.Lock()
				results = append(results, ws)
				mu.Unlock()
			}
		}(task, worker)
	}

	wg.Wait()
	return results
}

// Scan прогоняет один скан через зарегистрированный flow.
func (o *Orchestrator) Scan(ctx context.Context, state *models.GlobalState) (*models.GlobalState, error) {
	return o.scanFlow.Run(ctx, state)
}
