// Package loadgen drives concurrent traffic through the authenticated gateway, which exercises
// shared token refresh under load.
package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
)

// Requester is the gateway surface loadgen needs.
type Requester interface {
	Request(ctx context.Context, method, path string, opts gateway.RequestOptions) (json.RawMessage, error)
}

type Config struct {
	Client      Requester
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        uint64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	ByStatusClass map[string]int64
	ByKind        map[string]int64
	Elapsed       time.Duration
}

var profiles = map[string][]string{
	"content": {"/articles", "/articles?page=2&page_size=1", "/quizzes/1", "/quizzes/2", "/quizzes/3"},
	"account": {"/account/"},
}

func init() {
	profiles["mixed"] = append(append([]string{}, profiles["content"]...), profiles["account"]...)
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Run issues GET requests from Concurrency workers at roughly RPS in total until Duration
// elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Client == nil {
		return Result{}, errors.New("loadgen: client is required")
	}
	paths, ok := profiles[normalizeProfile(cfg.Profile)]
	if !ok {
		return Result{}, fmt.Errorf("loadgen: unknown profile %q", cfg.Profile)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	ticks := make(chan struct{})
	go func() {
		defer close(ticks)
		ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ticks <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	res := Result{ByStatusClass: map[string]int64{}, ByKind: map[string]int64{}}
	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		if err == nil {
			res.ByStatusClass[classifyStatusClass(http.StatusOK)]++
			return
		}
		res.Failures++
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			res.ByStatusClass[classifyStatusClass(gerr.Status)]++
			res.ByKind[string(gerr.Kind)]++
			return
		}
		res.ByStatusClass["other"]++
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(cfg.Seed, worker))
			for range ticks {
				_, err := cfg.Client.Request(ctx, http.MethodGet, paths[rng.IntN(len(paths))], gateway.RequestOptions{})
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				record(err)
			}
		}(uint64(w))
	}
	wg.Wait()
	res.Elapsed = time.Since(start)
	return res, nil
}
