package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory

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

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_InvalidOutboxPublisher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutboxPublisher = "carrier-pigeon"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported outbox publisher") {
		t.Fatalf("expected unsupported outbox publisher error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.close() }()

	if deps.uow == nil || deps.outboxRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	checker, ok := deps.checkers["postgres"]
	if !ok {
		t.Fatal("expected postgres checker")
	}
	if check := checker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

func TestShutdownWorker(t *testing.T) {
	logger := log.WithField("test", "shutdown")

	cancelCalled := false
	done := make(chan struct{})
	close(done)
	shutdownWorker(func() { cancelCalled = true }, done, logger)
	if !cancelCalled {
		t.Fatal("expected cancel func to be called")
	}

	shutdownWorker(nil, nil, logger)

	ran := make(chan struct{})
	cancel, workerDone := runWorker(context.Background(), func(ctx context.Context) {
		close(ran)
		<-ctx.Done()
	})
	<-ran
	shutdownWorker(cancel, workerDone, logger)
	select {
	case <-workerDone:
	default:
		t.Fatal("worker must be stopped after shutdownWorker")
	}
}

func TestOutboxBacklogChecker(t *testing.T) {
	repo := memory.NewOutboxRepository()
	checker := outboxBacklogChecker(repo, 1)

	if check := checker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy for empty outbox, got %+v", check)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.Enqueue(context.Background(), domain.OutboxMessage{AggregateType: domain.AggregateOrder}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	check := checker.Check()
	if check.Status != healthcheck.StatusDegraded {
		t.Fatalf("expected degraded for backlog above limit, got %+v", check)
	}
	if check.Message != "2 pending events" {
		t.Fatalf("unexpected message %q", check.Message)
	}
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("SHOP_POSTGRES_TEST_DSN"))
}
