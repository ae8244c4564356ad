package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_sweep_runs_total",
		Help: "Total number of expired-reservation sweep runs grouped by result.",
	}, []string{"result"})
	sweepResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_sweep_resolved_total",
		Help: "Total number of expired orders resolved by the sweeper.",
	})
	sweepLastProcessed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_sweep_last_processed",
		Help: "Number of expired orders processed during the last sweep run.",
	})
)

// Reconciler закрывает просроченные резервы, сверяясь со шлюзом.
type Reconciler interface {
	ListExpired(ctx context.Context, limit int) ([]string, error)
	ReconcileExpired(ctx context.Context, orderID string) error
}

// Options задает параметры sweeper-воркера.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задает максимум заказов за один проход.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// Worker периодически разрешает заказы с истёкшим дедлайном оплаты.
// Каждый заказ обрабатывается изолированно: сбой одного не останавливает проход.
type Worker struct {
	reconciler Reconciler
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
}

// NewWorker создает sweeper-воркер.
func NewWorker(reconciler Reconciler, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultSweepInterval,
		BatchSize: defaultSweepBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "reservation-sweeper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	return &Worker{
		reconciler: reconciler,
		logger:     logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
	}
}

// Run запускает периодические проходы до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.reconciler == nil {
		w.logger.Warn("reservation sweeper is disabled: reconciler is nil")
		return
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	processed, err := w.ProcessOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("sweep run failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastProcessed.Set(float64(processed))
	if processed > 0 {
		w.logger.WithField("processed", processed).Info("sweep completed")
	}
}

// ProcessOnce выполняет один проход: выбирает просроченные заказы и разрешает
// каждый по отдельности. Возвращает число успешно разрешённых заказов.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	ids, err := w.reconciler.ListExpired(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := w.reconciler.ReconcileExpired(ctx, id); err != nil {
			w.logger.WithError(err).WithField("order_id", id).Warn("reconcile expired order failed")
			continue
		}
		processed++
		sweepResolvedTotal.Inc()
	}

	return processed, nil
}
