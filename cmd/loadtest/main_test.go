package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	storev1 "github.com/vladislavdragonenkov/storefront/api/store/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/address"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/flags"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/guard"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fakeStoreClient struct {
	updateCartFn func(context.Context, *structpb.Struct) (*structpb.Struct, error)
	addressFn    func(context.Context, *structpb.Struct) (*structpb.Struct, error)
	checkoutFn   func(context.Context, *structpb.Struct) (*structpb.Struct, error)
	transitionFn func(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func (f *fakeStoreClient) UpdateCart(ctx context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	if f.updateCartFn == nil {
		return &structpb.Struct{}, nil
	}
	return f.updateCartFn(ctx, in)
}

func (f *fakeStoreClient) CreateAddress(ctx context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	if f.addressFn == nil {
		return mustStruct(map[string]any{"address_id": "addr-1"}), nil
	}
	return f.addressFn(ctx, in)
}

func (f *fakeStoreClient) Checkout(ctx context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	if f.checkoutFn == nil {
		return nil, errors.New("unexpected Checkout call")
	}
	return f.checkoutFn(ctx, in)
}

func (f *fakeStoreClient) TransitionOrderStatus(ctx context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	if f.transitionFn == nil {
		return nil, errors.New("unexpected TransitionOrderStatus call")
	}
	return f.transitionFn(ctx, in)
}

func mustStruct(fields map[string]any) *structpb.Struct {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		panic(err)
	}
	return s
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "checkout", input: "checkout", want: modeCheckout},
		{name: "checkout-ship", input: " checkout-ship ", want: modeCheckoutShip},
		{name: "checkout-cancel", input: "checkout-cancel", want: modeCheckoutCancel},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-addr=127.0.0.1:50051",
			"-mode=checkout-ship",
			"-total=12",
			"-concurrency=3",
			"-connections=2",
			"-timeout=2s",
			"-cancel-rate=10",
			"-product= p-mug ",
			"-quantity=2",
			"-shipping=EXPRESS",
			"-tolerate-stock-out",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.mode != modeCheckoutShip {
				t.Fatalf("unexpected mode: %s", cfg.mode)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.connections != 2 || cfg.quantity != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.productID != "p-mug" || cfg.shipping != string(domain.ShippingExpress) {
				t.Fatalf("unexpected product or shipping: %+v", cfg)
			}
			if !cfg.tolerateStock {
				t.Fatal("expected tolerateStock=true")
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{"-duration=3s", "-product=p-1"}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
			if cfg.shipping != string(domain.ShippingStandard) {
				t.Fatalf("unexpected default shipping: %s", cfg.shipping)
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-product=p", "-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-product=p", "-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "invalid cancel rate", args: []string{"-product=p", "-cancel-rate=101"}, wantErr: "cancel-rate must be between 0 and 100"},
			{name: "empty total", args: []string{"-product=p", "-total=0"}, wantErr: "total must be > 0"},
			{name: "missing product", args: nil, wantErr: "product is required"},
			{name: "unknown shipping", args: []string{"-product=p", "-shipping=drone"}, wantErr: "parse shipping"},
			{name: "zero quantity", args: []string{"-product=p", "-quantity=0"}, wantErr: "quantity must be > 0"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestLifecyclePlan(t *testing.T) {
	if plan := lifecyclePlan(config{mode: modeCheckout}, 0); len(plan) != 0 {
		t.Fatalf("checkout mode must stop after checkout, got %v", plan)
	}
	if plan := lifecyclePlan(config{mode: modeCheckoutCancel}, 0); !slices.Equal(plan, []domain.OrderStatus{domain.OrderStatusCancelled}) {
		t.Fatalf("unexpected cancel plan: %v", plan)
	}
	shipped := lifecyclePlan(config{mode: modeCheckoutShip, cancelRate: 10}, 42)
	if !slices.Equal(shipped, []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered}) {
		t.Fatalf("unexpected ship plan: %v", shipped)
	}
	cancelled := lifecyclePlan(config{mode: modeCheckoutShip, cancelRate: 10}, 5)
	if !slices.Equal(cancelled, []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCancelled}) {
		t.Fatalf("unexpected ship-cancel plan: %v", cancelled)
	}
}

func TestRunScenario(t *testing.T) {
	cfg := config{
		mode:      modeCheckoutCancel,
		timeout:   time.Second,
		productID: "p-1",
		quantity:  2,
		shipping:  string(domain.ShippingStandard),
		userTag:   "load",
		adminID:   "admin-1",
	}

	t.Run("happy path", func(t *testing.T) {
		c := newCollector()
		var transitions []string
		client := &fakeStoreClient{
			updateCartFn: func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				mustHaveHeader(t, ctx, grpcsvc.UserIDHeader, "load-run-1-1")
				items := in.GetFields()["items"].GetListValue().GetValues()
				if len(items) != 1 || items[0].GetStructValue().GetFields()["quantity"].GetNumberValue() != 2 {
					t.Fatalf("unexpected cart items: %v", in)
				}
				return &structpb.Struct{}, nil
			},
			checkoutFn: func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				mustHaveHeader(t, ctx, grpcsvc.IdempotencyKeyHeader, "lt-checkout-run-1-1")
				if in.GetFields()["address_id"].GetStringValue() != "addr-1" {
					t.Fatalf("unexpected checkout request: %v", in)
				}
				return mustStruct(map[string]any{"order_id": "order-1"}), nil
			},
			transitionFn: func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				mustHaveHeader(t, ctx, grpcsvc.UserRoleHeader, string(domain.RoleAdmin))
				transitions = append(transitions, in.GetFields()["status"].GetStringValue())
				return &structpb.Struct{}, nil
			},
		}
		if err := runScenario(client, cfg, 1, "run-1", c); err != nil {
			t.Fatalf("runScenario failed: %v", err)
		}
		if !slices.Equal(transitions, []string{"cancelled"}) {
			t.Fatalf("unexpected transitions: %v", transitions)
		}
		snap, ok := c.snapshot(scenarioMethod)
		if !ok || snap.Success != 1 {
			t.Fatalf("unexpected scenario stats: %+v", snap)
		}
	})

	t.Run("checkout failure", func(t *testing.T) {
		c := newCollector()
		client := &fakeStoreClient{
			checkoutFn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return nil, status.Error(codes.Unavailable, "down")
			},
		}
		if err := runScenario(client, cfg, 2, "run-2", c); status.Code(err) != codes.Unavailable {
			t.Fatalf("expected Unavailable error, got %v", err)
		}
		snap, _ := c.snapshot(scenarioMethod)
		if snap.Codes[codes.Unavailable.String()] != 1 {
			t.Fatalf("scenario must record failure code, got %+v", snap.Codes)
		}
	})

	t.Run("stock out tolerated", func(t *testing.T) {
		c := newCollector()
		client := &fakeStoreClient{
			checkoutFn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return nil, status.Error(codes.Aborted, "not enough stock")
			},
		}
		tolerant := cfg
		tolerant.tolerateStock = true
		if err := runScenario(client, tolerant, 3, "run-3", c); err != nil {
			t.Fatalf("stock out must be tolerated, got %v", err)
		}
		if r := c.buildReport(time.Now(), time.Second); r.StockOuts != 1 || r.FailedScenarios != 0 {
			t.Fatalf("unexpected report: %+v", r)
		}
	})

	t.Run("empty order id", func(t *testing.T) {
		client := &fakeStoreClient{
			checkoutFn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return &structpb.Struct{}, nil
			},
		}
		if err := runScenario(client, cfg, 4, "run-4", newCollector()); err == nil || !strings.Contains(err.Error(), "empty order id") {
			t.Fatalf("expected empty id error, got %v", err)
		}
	})
}

func TestMainSmoke(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func(lis net.Listener) {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.Fatalf("close listener: %v", err)
		}
	}(lis)

	srv := grpc.NewServer()
	storev1.RegisterStoreServiceServer(srv, newSmokeStoreService(t))
	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "main-report.json")

	withCLIArgs(t, []string{
		"-addr=" + lis.Addr().String(),
		"-mode=checkout-ship",
		"-product=p-load",
		"-total=5",
		"-concurrency=1",
		"-connections=1",
		"-timeout=2s",
		"-output=" + outPath,
	}, func() {
		main()
	})

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
}

func newSmokeStoreService(t *testing.T) *grpcsvc.StoreService {
	t.Helper()

	store := memory.NewStore()
	base := log.New()
	base.SetLevel(log.PanicLevel)
	logger := base.WithField("component", "loadtest-smoke")
	m := metrics.NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	err := store.Do(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Products().Create(ctx, domain.Product{
			ID:            "p-load",
			Name:          "Load Widget",
			Price:         decimal.RequireFromString("10.00"),
			StockQuantity: 100,
		})
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	g := guard.New(store, logger, m)
	coord := flags.NewCoordinator(g, logger, m)
	reader := cart.NewReader(store, logger, m)
	return grpcsvc.NewStoreService(grpcsvc.Dependencies{
		CartReader:  reader,
		Carts:       cart.NewService(store, reader, logger, m),
		Checkout:    checkout.NewCoordinator(g, reader, logger, m),
		Lifecycle:   lifecycle.NewMachine(g, logger, m),
		Orders:      orders.NewQuery(g),
		Addresses:   address.NewService(g, coord, logger),
		Images:      catalog.NewImageService(g, coord, logger),
		Idempotency: memory.NewIdempotencyRepository(),
	}, logger)
}

func mustHaveHeader(t *testing.T, ctx context.Context, key, want string) {
	t.Helper()

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatalf("missing outgoing metadata")
	}
	values := md.Get(key)
	if len(values) != 1 || values[0] != want {
		t.Fatalf("unexpected %s: got=%v want=%q", key, values, want)
	}
}
