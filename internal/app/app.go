package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/config"
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
	"github.com/vladislavdragonenkov/shopcore/internal/service/orders"
	"github.com/vladislavdragonenkov/shopcore/internal/service/sweeper"
	"github.com/vladislavdragonenkov/shopcore/internal/service/webhook"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/postgres"
	httptransport "github.com/vladislavdragonenkov/shopcore/internal/transport/http"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
	webhookTolerance    = 5 * time.Minute
	shutdownTimeout     = 5 * time.Second
)

// Run собирает все подсистемы и обслуживает запросы до отмены контекста.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	paymentGateway, breaker := buildGateway(cfg, logger)
	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	svc := orders.NewService(store, paymentGateway, notifier, orders.Config{
		ReservationTTL: cfg.ReservationTTL,
	}, log.WithField("component", "orders"))

	verifier := webhook.NewVerifier(cfg.WebhookSecret, webhookTolerance, cfg.WebhookSkipVerify)
	if cfg.WebhookSkipVerify {
		logger.Warn("webhook signature verification is disabled")
	}
	ingestor := webhook.NewIngestor(store, paymentGateway, svc, log.WithField("component", "webhook"))

	healthHandler := healthcheck.NewHandler(version.Short())
	if pg, ok := store.(*postgres.Store); ok {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pg.Ping(checkCtx)
		}))
	}
	if breaker != nil {
		healthHandler.RegisterChecker("gateway", gatewayChecker(breaker))
	}

	worker := sweeper.NewWorker(svc,
		sweeper.WithLogger(log.WithField("component", "sweeper")),
		sweeper.WithInterval(cfg.SweepInterval),
	)
	go worker.Run(ctx)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	handler := httptransport.NewHandler(svc, ingestor, verifier, log.WithField("component", "http"))
	router := httptransport.NewRouter(handler, healthHandler)
	apiSrv := httptransport.NewServer(cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openStore выбирает хранилище: PostgreSQL при заданном DSN, иначе in-memory.
func openStore(ctx context.Context, cfg config.Config, logger *log.Entry) (domain.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres DSN is empty, using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	pg, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	logger.Info("postgres store initialized")
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}, nil
}

// buildGateway возвращает клиент платёжного шлюза за circuit breaker'ом
// или заглушку, когда адрес шлюза не задан. Breaker возвращается отдельно
// для health-проверки; для заглушки он nil.
func buildGateway(cfg config.Config, logger *log.Entry) (domain.PaymentGateway, *gateway.CircuitBreaker) {
	if cfg.GatewayBaseURL == "" {
		logger.Warn("gateway base URL is empty, using mock gateway")
		return gateway.NewMockGateway(), nil
	}
	client := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayToken, log.WithField("component", "gateway"))
	breaker := gateway.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout, log.WithField("component", "breaker"))
	return gateway.NewBreakerGateway(client, breaker), breaker
}

// gatewayChecker следит за состоянием circuit breaker-а шлюза. Открытый
// контур деградирует готовность, но не выводит сервис из балансировки:
// заказы без оплаты по-прежнему обслуживаются.
func gatewayChecker(breaker *gateway.CircuitBreaker) healthcheck.Checker {
	return healthcheck.NewDegradedChecker("gateway", func() error {
		if state := breaker.State(); state != gateway.CircuitClosed {
			return fmt.Errorf("circuit breaker is %s", state)
		}
		return nil
	})
}

// buildNotifier подключает Kafka-продюсер, а без брокеров пишет события в лог.
func buildNotifier(cfg config.Config, logger *log.Entry) (domain.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return kafka.NewLogNotifier(log.WithField("component", "notifier")), func() {}
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, log.WithField("component", "kafka"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, falling back to log notifier")
		return kafka.NewLogNotifier(log.WithField("component", "notifier")), func() {}
	}

	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
	return kafka.NewNotifier(producer, log.WithField("component", "notifier")), func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
