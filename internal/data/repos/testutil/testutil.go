package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/yungbote/mediaforge-backend/internal/platform/docstore"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// Store returns a fresh in-memory document store.
func Store(tb testing.TB) docstore.Store {
	tb.Helper()
	return docstore.NewMemory()
}

// PostgresStore connects to TEST_POSTGRES_DSN or skips the test.
func PostgresStore(tb testing.TB) docstore.Store {
	tb.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	s, err := docstore.Open("postgres", dsn, Logger(tb))
	if err != nil {
		tb.Fatalf("failed to init test store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	return s
}
