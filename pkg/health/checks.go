package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is implemented by *pgxpool.Pool and the OSS bucket adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a dependency through its Ping method.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// GoroutineCheck fails when more than limit goroutines are running, which
// usually means uploads are piling up behind a stuck storage call.
func GoroutineCheck(limit int) Check {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}
