package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "SHOP_POSTGRES_DSN"
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		fail("%s (or -dsn) is required", envPostgresDSN)
	}

	statusOnly := strings.EqualFold(strings.TrimSpace(direction), "status")
	var dir postgres.Direction
	if !statusOnly {
		parsed, err := postgres.ParseDirection(direction)
		if err != nil {
			fail("%v (use up|down|status)", err)
		}
		dir = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if !statusOnly {
		if err := store.Migrate(ctx, dir, steps); err != nil {
			fail("migrate %s failed: %v", dir, err)
		}
	}

	st, err := store.Status(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	if statusOnly {
		fmt.Printf("migration status: version=%d applied=%d available=%d\n", st.Version, st.Applied, st.Available)
		return
	}
	fmt.Printf("migrate %s ok: version=%d applied=%d available=%d\n", dir, st.Version, st.Applied, st.Available)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
