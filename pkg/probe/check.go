package probe

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Report is the readiness verdict returned by /readyz.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool { return r.Status == StatusOK }

// Evaluate runs all checks concurrently, each bounded by timeout.
// A failed check is reported by its error message.
func Evaluate(ctx context.Context, checks map[string]Check, timeout time.Duration) Report {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := checks[name](cctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = StatusOK
		}()
	}
	wg.Wait()

	rep := Report{Status: StatusOK, Checks: make(map[string]string, len(names))}
	for i, name := range names {
		rep.Checks[name] = results[i]
		if results[i] != StatusOK {
			rep.Status = StatusFail
		}
	}
	return rep
}
