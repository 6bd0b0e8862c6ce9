package results

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/numquiz/internal/metrics"
)

// WorkerOptions configures the archive worker.
type WorkerOptions struct {
	QueueSize   int
	SaveTimeout time.Duration
}

// Worker archives finished games off the command loop. Submit never blocks;
// Run writes each summary to every sink.
type Worker struct {
	sinks   []Sink
	queue   chan Summary
	timeout time.Duration
	metrics *metrics.Collectors
	logger  zerolog.Logger
}

// NewWorker creates an archive worker over the given sinks.
func NewWorker(sinks []Sink, opts WorkerOptions, collectors *metrics.Collectors, logger zerolog.Logger) *Worker {
	size := opts.QueueSize
	if size <= 0 {
		size = 64
	}
	timeout := opts.SaveTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if collectors == nil {
		collectors = metrics.Discard()
	}

	return &Worker{
		sinks:   sinks,
		queue:   make(chan Summary, size),
		timeout: timeout,
		metrics: collectors,
		logger:  logger.With().Str("component", "results_worker").Logger(),
	}
}

// Submit queues a summary. It reports false when the queue is full.
func (w *Worker) Submit(sum Summary) bool {
	select {
	case w.queue <- sum:
		return true
	default:
		w.metrics.ArchiveDropped.Inc()
		w.logger.Warn().Str("room_id", sum.RoomID).Msg("archive queue full, dropping result")
		return false
	}
}

// Run blocks until ctx is cancelled, then drains what is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case sum := <-w.queue:
			w.handle(ctx, sum)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case sum := <-w.queue:
			w.handle(context.Background(), sum)
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, sum Summary) {
	for _, sink := range w.sinks {
		saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := sink.Save(saveCtx, sum)
		cancel()

		if err != nil {
			w.metrics.ArchiveWrites.WithLabelValues(sink.Name(), "error").Inc()
			w.logger.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("room_id", sum.RoomID).
				Str("game_id", sum.GameID.String()).
				Msg("archive write failed")
			continue
		}
		w.metrics.ArchiveWrites.WithLabelValues(sink.Name(), "ok").Inc()
		w.logger.Debug().Str("sink", sink.Name()).Str("room_id", sum.RoomID).Msg("result archived")
	}
}
