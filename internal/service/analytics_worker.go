package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"postback-relay/internal/metrics"
	"postback-relay/internal/model"
	"postback-relay/internal/repository"
)

// AnalyticsWorker forwards audit rows to the analytics store in batches.
type AnalyticsWorker interface {
	// Enqueue never blocks; it reports false when the row was dropped.
	Enqueue(event model.Event) bool
	Shutdown()
}

type analyticsWorker struct {
	repo          repository.ConversionRepository
	queue         chan model.Event
	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration
	wg            sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAnalyticsWorker starts the flush loop.
func NewAnalyticsWorker(repo repository.ConversionRepository, bufferSize, batchSize int, interval time.Duration) AnalyticsWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	w := &analyticsWorker{
		repo:          repo,
		queue:         make(chan model.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: interval,
		flushTimeout:  5 * time.Second,
	}
	w.wg.Add(1)
	go w.startLoop()
	return w
}

func (w *analyticsWorker) Enqueue(event model.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		metrics.AnalyticsDropped.Inc()
		return false
	}

	select {
	case w.queue <- event:
		return true
	default:
		metrics.AnalyticsDropped.Inc()
		slog.Warn("analytics queue full, dropping event", "event_id", event.ID, "capacity", cap(w.queue))
		return false
	}
}

// Shutdown stops accepting rows and waits until the queue is drained.
func (w *analyticsWorker) Shutdown() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		slog.Info("analytics worker stopping", "pending", len(w.queue))
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *analyticsWorker) startLoop() {
	defer w.wg.Done()

	var batch []model.Event
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.queue:
			if !ok {
				if len(batch) > 0 {
					w.flush(batch)
				}
				slog.Info("analytics worker stopped")
				return
			}

			batch = append(batch, event)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = nil
			}
		}
	}
}

func (w *analyticsWorker) flush(events []model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.flushTimeout)
	defer cancel()

	if err := w.repo.CreateBatch(ctx, events); err != nil {
		metrics.AnalyticsFlushed.WithLabelValues("error").Add(float64(len(events)))
		slog.Error("analytics flush failed", "events", len(events), "error", err)
		return
	}
	metrics.AnalyticsFlushed.WithLabelValues("ok").Add(float64(len(events)))
	slog.Debug("analytics batch flushed", "events", len(events))
}
