// Command loadtest гоняет параллельные оформления заказов против StoreService
// и печатает сводку по задержкам и кодам ответов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	storev1 "github.com/vladislavdragonenkov/storefront/api/store/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

type loadMode string

const (
	modeCheckout       loadMode = "checkout"
	modeCheckoutShip   loadMode = "checkout-ship"
	modeCheckoutCancel loadMode = "checkout-cancel"
)

// storeClient: подмножество StoreServiceClient, которое нужно сценарию.
type storeClient interface {
	UpdateCart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CreateAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Checkout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	TransitionOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type config struct {
	addr          string
	total         int
	totalSet      bool
	duration      time.Duration
	concurrency   int
	connections   int
	timeout       time.Duration
	mode          loadMode
	cancelRate    int
	productID     string
	quantity      int
	shipping      string
	userTag       string
	adminID       string
	tolerateStock bool
	outputPath    string
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCheckout), "load mode: checkout | checkout-ship | checkout-cancel")
	flag.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for checkout-ship mode (0..100)")
	flag.StringVar(&cfg.productID, "product", "", "product id to put into every cart")
	flag.IntVar(&cfg.quantity, "quantity", 1, "quantity per cart")
	flag.StringVar(&cfg.shipping, "shipping", string(domain.ShippingStandard), "shipping method: standard | express")
	flag.StringVar(&cfg.userTag, "user-tag", "load", "user id prefix")
	flag.StringVar(&cfg.adminID, "admin-id", "load-admin", "admin user id for status transitions")
	flag.BoolVar(&cfg.tolerateStock, "tolerate-stock-out", false, "treat insufficient stock on checkout as an expected outcome")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	shipping, err := domain.ParseShippingMethod(cfg.shipping)
	if err != nil {
		return cfg, fmt.Errorf("parse shipping: %w", err)
	}
	cfg.shipping = string(shipping)
	cfg.productID = strings.TrimSpace(cfg.productID)

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case cfg.productID == "":
		return cfg, errors.New("product is required")
	case strings.TrimSpace(cfg.userTag) == "":
		return cfg, errors.New("user-tag is required")
	case strings.TrimSpace(cfg.adminID) == "":
		return cfg, errors.New("admin-id is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCheckout, modeCheckoutShip, modeCheckoutCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]storeClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, storev1.NewStoreServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()
	failures := runWorkers(clients, cfg, runID, col)

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runWorkers раздаёт номера сценариев concurrency воркерам и возвращает число неудач.
func runWorkers(clients []storeClient, cfg config, runID string, col *collector) int64 {
	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli storeClient) {
			defer wg.Done()
			for id := range jobs {
				if err := runScenario(cli, cfg, id, runID, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(clients[workerID%len(clients)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()
	return atomic.LoadInt64(&failures)
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario наполняет корзину, создаёт адрес, оформляет заказ и, в зависимости
// от режима, проводит его по жизненному циклу.
func runScenario(client storeClient, cfg config, index int, runID string, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), scenarioCode)
	}()

	fail := func(err error) error {
		scenarioCode = grpcCode(err)
		return err
	}

	userID := fmt.Sprintf("%s-%s-%d", cfg.userTag, runID, index)

	cartReq, err := structpb.NewStruct(map[string]any{
		"items": []any{map[string]any{"product_id": cfg.productID, "quantity": float64(cfg.quantity)}},
	})
	if err != nil {
		return fail(err)
	}
	if _, err := call(userCtx(userID, ""), col, "UpdateCart", cfg.timeout, "", client.UpdateCart, cartReq); err != nil {
		return fail(err)
	}

	addressReq, err := structpb.NewStruct(map[string]any{
		"full_name": "Load Test",
		"street":    fmt.Sprintf("%d Benchmark Ave", index),
		"city":      "Cairo",
		"country":   "EG",
	})
	if err != nil {
		return fail(err)
	}
	addressResp, err := call(userCtx(userID, ""), col, "CreateAddress", cfg.timeout, "", client.CreateAddress, addressReq)
	if err != nil {
		return fail(err)
	}
	addressID := addressResp.GetFields()["address_id"].GetStringValue()
	if addressID == "" {
		return fail(status.Error(codes.Internal, "create address returned empty address id"))
	}

	checkoutReq, err := structpb.NewStruct(map[string]any{
		"address_id":      addressID,
		"shipping_method": cfg.shipping,
	})
	if err != nil {
		return fail(err)
	}
	checkoutKey := fmt.Sprintf("lt-checkout-%s-%d", runID, index)
	orderResp, err := call(userCtx(userID, ""), col, "Checkout", cfg.timeout, checkoutKey, client.Checkout, checkoutReq)
	if err != nil {
		if cfg.tolerateStock && status.Code(err) == codes.Aborted {
			col.recordStockOut()
			return nil
		}
		return fail(err)
	}
	orderID := orderResp.GetFields()["order_id"].GetStringValue()
	if orderID == "" {
		return fail(status.Error(codes.Internal, "checkout returned empty order id"))
	}

	for step, target := range lifecyclePlan(cfg, index) {
		req, err := structpb.NewStruct(map[string]any{"order_id": orderID, "status": string(target)})
		if err != nil {
			return fail(err)
		}
		key := fmt.Sprintf("lt-transition-%s-%d-%d", runID, index, step)
		adminCtx := userCtx(cfg.adminID, string(domain.RoleAdmin))
		if _, err := call(adminCtx, col, "TransitionOrderStatus", cfg.timeout, key, client.TransitionOrderStatus, req); err != nil {
			return fail(err)
		}
	}

	return nil
}

// lifecyclePlan возвращает статусы, через которые проводится заказ после оформления.
func lifecyclePlan(cfg config, index int) []domain.OrderStatus {
	switch cfg.mode {
	case modeCheckoutCancel:
		return []domain.OrderStatus{domain.OrderStatusCancelled}
	case modeCheckoutShip:
		if shouldCancelScenario(index, cfg.cancelRate) {
			return []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCancelled}
		}
		return []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered}
	default:
		return nil
	}
}

type unaryCall func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func call(ctx context.Context, col *collector, method string, timeout time.Duration, key string, fn unaryCall, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcsvc.IdempotencyKeyHeader, key)
	}

	resp, err := fn(ctx, req)
	col.record(method, time.Since(start), grpcCode(err))
	return resp, err
}

func userCtx(userID, role string) context.Context {
	pairs := []string{grpcsvc.UserIDHeader, userID}
	if role != "" {
		pairs = append(pairs, grpcsvc.UserRoleHeader, role)
	}
	return metadata.AppendToOutgoingContext(context.Background(), pairs...)
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
