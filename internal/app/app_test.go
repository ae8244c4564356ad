package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/config"
	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"

	log "github.com/sirupsen/logrus"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := config.Config{
		HTTPAddr:       "127.0.0.1:0",
		MetricsAddr:    "127.0.0.1:0",
		ReservationTTL: 30 * time.Minute,
		SweepInterval:  time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenStore_MemoryFallback(t *testing.T) {
	store, cleanup, err := openStore(context.Background(), config.Config{}, log.WithField("test", "store"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected in-memory store, got %T", store)
	}
}

func TestBuildGateway_MockWithoutBaseURL(t *testing.T) {
	gw, breaker := buildGateway(config.Config{}, log.WithField("test", "gateway"))
	if _, ok := gw.(*gateway.MockGateway); !ok {
		t.Fatalf("expected mock gateway, got %T", gw)
	}
	if breaker != nil {
		t.Fatal("expected nil breaker for mock gateway")
	}

	gw, breaker = buildGateway(config.Config{GatewayBaseURL: "http://localhost:9999"}, log.WithField("test", "gateway"))
	if _, ok := gw.(*gateway.BreakerGateway); !ok {
		t.Fatalf("expected breaker-wrapped gateway, got %T", gw)
	}
	if breaker == nil {
		t.Fatal("expected breaker alongside real gateway")
	}
	if breaker.State() != gateway.CircuitClosed {
		t.Fatalf("expected closed breaker, got %v", breaker.State())
	}
}

func TestGatewayChecker_OpenBreakerDegrades(t *testing.T) {
	breaker := gateway.NewCircuitBreaker(1, time.Minute, log.WithField("test", "breaker"))
	checker := gatewayChecker(breaker)

	if got := checker.Check(); got.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy with closed breaker, got %+v", got)
	}

	_ = breaker.Execute("get_payment", func() error { return domain.ErrGatewayUnavailable })

	got := checker.Check()
	if got.Status != healthcheck.StatusDegraded {
		t.Fatalf("expected degraded with open breaker, got %+v", got)
	}
}

func TestBuildNotifier_LogFallback(t *testing.T) {
	notifier, closeFn := buildNotifier(config.Config{}, log.WithField("test", "notifier"))
	defer closeFn()

	if notifier == nil {
		t.Fatal("expected non-nil notifier")
	}
}
