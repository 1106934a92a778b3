package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/logger"
)

// WebhookConfig tunes the webhook sink. Zero values fall back to the
// defaults below.
type WebhookConfig struct {
	URL             string
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RequestTimeout  time.Duration
}

const (
	defaultQueueSize       = 256
	defaultMaxRetries      = 5
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
)

type webhookEnvelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	EmittedAt time.Time `json:"emitted_at"`
	Payload   Event     `json:"payload"`
}

// Webhook delivers events to an HTTP endpoint from a background worker, so
// the settlement path never blocks on the indexer. The queue is bounded:
// when it is full, events are dropped and logged rather than applying
// backpressure to settlements.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	queue  chan webhookEnvelope
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	w := &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		queue:  make(chan webhookEnvelope, cfg.QueueSize),
	}
	w.wg.Add(1)
	go w.worker()
	return w
}

func (w *Webhook) Emit(ctx context.Context, event Event) {
	env := webhookEnvelope{
		ID:        uuid.New().String(),
		Event:     event.Name(),
		EmittedAt: time.Now().UTC(),
		Payload:   event,
	}
	select {
	case w.queue <- env:
	default:
		logger.Warn("webhook queue full, dropping event",
			zap.String("event", env.Event),
			zap.String("id", env.ID))
	}
}

// Close stops accepting events and blocks until queued deliveries finish.
func (w *Webhook) Close() {
	w.closeOnce.Do(func() {
		close(w.queue)
		w.wg.Wait()
	})
}

func (w *Webhook) worker() {
	defer w.wg.Done()
	for env := range w.queue {
		if err := w.deliver(env); err != nil {
			logger.Error("webhook delivery failed",
				zap.String("event", env.Event),
				zap.String("id", env.ID),
				zap.Error(err))
		}
	}
}

func (w *Webhook) deliver(env webhookEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode webhook envelope: %w", err)
	}

	operation := func() error {
		resp, err := w.client.Post(w.cfg.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("retryable status code: %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = w.cfg.InitialInterval
	expBackoff.MaxInterval = w.cfg.MaxInterval

	return backoff.Retry(operation, backoff.WithMaxRetries(expBackoff, w.cfg.MaxRetries))
}
