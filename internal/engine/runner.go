package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/BetterCallFirewall/aegisx/internal/config"
	"github.com/BetterCallFirewall/aegisx/internal/models"
)

// queuePollTimeout - таймаут блокирующего опроса очереди. Даёт циклу
// точку выхода при остановке без отдельного сигнального канала.
const queuePollTimeout = 5 * time.Second

// TaskSource - очередь задач с точки зрения раннера.
type TaskSource interface {
	PopTask(ctx context.Context, timeout time.Duration) (*models.TaskPacket, error)
}

// Scanner - граф сканирования одного запроса.
type Scanner interface {
	Scan(ctx context.Context, state *models.GlobalState) (*models.GlobalState, error)
}

// ScanObserver получает завершённые сканы (отчёты, веб-хаб). Может быть nil.
type ScanObserver interface {
	ScanFinished(state *models.GlobalState)
}

// TaskRunner снимает задачи с очереди и запускает сканы, ограничивая их
// число семафором. Сбой одного скана не влияет ни на другие сканы, ни на
// цикл опроса.
type TaskRunner struct {
	queue    TaskSource
	scanner  Scanner
	observer ScanObserver
	sem      *semaphore.Weighted
	cfg      *config.Config
}

func NewTaskRunner(cfg *config.Config, queue TaskSource, scanner Scanner, observer ScanObserver) *TaskRunner {
	log.Printf("🏃 TaskRunner ready, max concurrent scans: %d", cfg.ScanMaxTasks)
	return &TaskRunner{
		queue:    queue,
		scanner:  scanner,
		observer: observer,
		sem:      semaphore.NewWeighted(cfg.ScanMaxTasks),
		cfg:      cfg,
	}
}

// Run качает очередь до отмены контекста. Сканы, начатые до отмены,
// дорабатывают сами; Run их не ждёт.
func (r *TaskRunner) Run(ctx context.Context) {
	log.Printf("🏃 TaskRunner started, polling task queue...")
	for {
		if ctx.Err() != nil {
			log.Printf("🏁 TaskRunner stopped")
			return
		}

		task, err := r.queue.PopTask(ctx, queuePollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("🏁 TaskRunner stopped")
				return
			}
			log.Printf("❌ Task queue poll failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(task *models.TaskPacket) {
			defer r.sem.Release(1)
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("❌ Scan panicked: %v", rec)
				}
			}()
			r.processTask(context.WithoutCancel(ctx), task)
		}(task)
	}
}

func (r *TaskRunner) processTask(ctx context.Context, task *models.TaskPacket) {
	projectName := task.ProjectName
	if projectName == "" {
		projectName = "Default"
	}

	state := &models.GlobalState{
		RequestID:       uuid.NewString(),
		ProjectName:     projectName,
		TargetURL:       task.URL,
		Method:          task.Method,
		Headers:         task.Headers,
		Body:            task.Body,
		ResponseHeaders: task.ResponseHeaders,
		ResponseBody:    task.ResponseBody,
	}

	log.Printf("▶️ Scan started: %s | %s %s", state.RequestID, state.Method, state.TargetURL)

	final, err := r.scanner.Scan(ctx, state)
	if err != nil {
		log.Printf("❌ Scan failed: %s | %v", state.RequestID, err)
		return
	}

	if len(final.Findings) > 0 {
		log.Printf("🎯 Scan %s finished with %d finding(s)", final.RequestID, len(final.Findings))
	} else {
		log.Printf("✅ Scan %s finished clean | tasks: %v", final.RequestID, final.Tasks)
	}

	if r.observer != nil {
		r.observer.ScanFinished(final)
	}
}
