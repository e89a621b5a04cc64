package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crabcut/shortener/internal/cache"
	"github.com/crabcut/shortener/internal/events"
	"github.com/crabcut/shortener/internal/model"
	"github.com/crabcut/shortener/internal/repository"
)

// ClickTask describes the side effects owed for one resolved redirect:
// bump the stored click count, slide the cache TTL on a hit, emit telemetry.
// None of these run on the response's critical path.
type ClickTask struct {
	ShortCode string
	CacheHit  bool
	Event     model.ClickEvent
}

// ClickWorker drains a bounded queue of click tasks with a small pool of
// goroutines. Enqueue never blocks a request handler; when the queue is full
// the task is dropped and logged.
type ClickWorker struct {
	tasks     chan ClickTask
	repo      repository.URLRepository
	cache     cache.Cache
	publisher events.Publisher
	logger    *zap.Logger
	cacheTTL  time.Duration
	wg        sync.WaitGroup
}

const taskTimeout = 5 * time.Second

func NewClickWorker(
	repo repository.URLRepository,
	c cache.Cache,
	publisher events.Publisher,
	cacheTTL time.Duration,
	queueSize int,
	logger *zap.Logger,
) *ClickWorker {
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &ClickWorker{
		tasks:     make(chan ClickTask, queueSize),
		repo:      repo,
		cache:     c,
		publisher: publisher,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Start launches the worker pool.
func (w *ClickWorker) Start(workers int) {
	if workers <= 0 {
		workers = 4
	}

	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Enqueue hands a task to the pool without blocking. Returns false when the
// queue is full and the task was dropped.
func (w *ClickWorker) Enqueue(task ClickTask) bool {
	select {
	case w.tasks <- task:
		return true
	default:
		w.logger.Warn("click queue full, dropping task",
			zap.String("short_code", task.ShortCode))
		return false
	}
}

// Shutdown stops accepting tasks and waits for the queue to drain.
func (w *ClickWorker) Shutdown() {
	close(w.tasks)
	w.wg.Wait()
}

func (w *ClickWorker) run() {
	defer w.wg.Done()

	for task := range w.tasks {
		w.process(task)
	}
}

func (w *ClickWorker) process(task ClickTask) {
	// A panicking task must never take down the pool or leak into a request.
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("click task panicked",
				zap.String("short_code", task.ShortCode),
				zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := w.repo.IncrementClickCount(ctx, task.ShortCode); err != nil {
		w.logger.Warn("failed to increment click count",
			zap.String("short_code", task.ShortCode),
			zap.Error(err))
	}

	// On a miss the resolver already backfilled the entry with a fresh TTL.
	if task.CacheHit {
		key := cache.CacheKeys.URL(task.ShortCode)
		if err := w.cache.RefreshExpiry(ctx, key, w.cacheTTL); err != nil && err != cache.ErrCacheMiss {
			w.logger.Warn("failed to refresh cache expiry",
				zap.String("short_code", task.ShortCode),
				zap.Error(err))
		}
	}

	w.publisher.Publish(task.Event)
}
