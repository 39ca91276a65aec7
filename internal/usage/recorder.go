package usage

import (
	"context"
	"log/slog"

	"github.com/gharkhoji/gharkhoji/internal/events"
)

// Recorder is a background worker that persists llm_response events
// from the bus into the usage store. Keeping the accounting off the
// query path means a slow disk never delays an answer, at the cost of
// dropping records when the subscriber buffer overflows.
type Recorder struct {
	store  *Store
	bus    *events.Bus
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a usage recorder. Call Start to begin consuming.
func NewRecorder(store *Store, bus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		bus:    bus,
		logger: logger.With("component", "usage"),
		done:   make(chan struct{}),
	}
}

// Start begins consuming bus events in the background.
func (r *Recorder) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.run(workerCtx)
}

// Stop cancels the recorder and waits for its goroutine to exit.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	ch := r.bus.Subscribe(64)
	defer r.bus.Unsubscribe(ch)

	r.logger.Info("usage recorder starting")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("usage recorder stopped")
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Kind != events.KindLLMResponse {
				continue
			}
			model, _ := e.Data["model"].(string)
			in, _ := e.Data["input_tokens"].(int)
			out, _ := e.Data["output_tokens"].(int)
			err := r.store.Record(ctx, Record{
				CreatedAt:    e.Timestamp,
				Source:       e.Source,
				Model:        model,
				InputTokens:  in,
				OutputTokens: out,
			})
			if err != nil {
				r.logger.Warn("record token usage", "error", err)
			}
		}
	}
}
