// Command authguard-loadtest drives an Engine through login, access
// validation, refresh rotation and request scoring under concurrency, and
// optionally compares the results with a saved baseline.
package main

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/store/memory"
	"github.com/MrEthical07/authguard/threat"
)

const password = "Load-Test-Pass-42!"

type sessionState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users        = flag.Int("users", 2000, "number of accounts to seed and log in")
		concurrency  = flag.Int("concurrency", 64, "number of concurrent workers")
		ops          = flag.Int("ops", 50000, "operations per phase")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix       = flag.String("prefix", "lt", "redis key prefix")
		outPath      = flag.String("out", "", "write results as JSON to this file")
		baselinePath = flag.String("baseline", "", "compare against results JSON written by a previous run")
		threshold    = flag.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: *concurrency * 2})
	defer client.Close()

	engine, store, err := buildEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	states, err := seed(ctx, engine, store, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	results := map[string]phaseStats{
		"validate": runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
			s := &states[r.Intn(len(states))]
			s.mu.Lock()
			token := s.access
			s.mu.Unlock()
			_, err := engine.ValidateAccess(ctx, token, "GET", "/api/driver/trips")
			return err
		}),
		"rotate": runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
			s := &states[r.Intn(len(states))]
			s.mu.Lock()
			defer s.mu.Unlock()
			pair, err := engine.RotateTokens(ctx, s.refresh)
			if err != nil {
				return err
			}
			s.access, s.refresh = pair.AccessToken, pair.RefreshToken
			return nil
		}),
		"score": runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
			_, err := engine.ScoreRequest(ctx, threat.Request{
				IP:        fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xFF, (i>>8)&0xFF, i&0xFF),
				Method:    "GET",
				Path:      "/api/driver/trips",
				RawQuery:  fmt.Sprintf("page=%d", r.Intn(50)),
				UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
			})
			return err
		}),
	}

	fmt.Println("---- results ----")
	for _, name := range phaseOrder {
		printStats(name, results[name])
	}

	if *outPath != "" {
		if err := writeResults(*outPath, results); err != nil {
			fmt.Fprintf(os.Stderr, "write results: %v\n", err)
			os.Exit(1)
		}
	}
	if *baselinePath != "" {
		baseline, err := readResults(*baselinePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read baseline: %v\n", err)
			os.Exit(1)
		}
		if failures := compare(baseline, results, *threshold); len(failures) > 0 {
			fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
			for _, f := range failures {
				fmt.Fprintf(os.Stderr, "  - %s\n", f)
			}
			os.Exit(1)
		}
		fmt.Println("no regression against baseline")
	}
}

func buildEngine(client *redis.Client, prefix string) (*authguard.Engine, *memory.Store, error) {
	cfg := authguard.DefaultConfig()
	cfg.Token.PrivateKey = make([]byte, 32)
	if _, err := crand.Read(cfg.Token.PrivateKey); err != nil {
		return nil, nil, err
	}
	cfg.Crypto.BcryptCost = 4
	cfg.Store.Prefix = prefix
	cfg.Threat.DefaultRateLimit = ""

	store := memory.New()
	engine, err := authguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithEventStore(store).
		Build()
	return engine, store, err
}

func seed(ctx context.Context, engine *authguard.Engine, store *memory.Store, n int) ([]sessionState, error) {
	hash, salt, _, err := engine.HashPassword(password)
	if err != nil {
		return nil, err
	}
	states := make([]sessionState, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("user-%d", i)
		identifier := id + "@load.test"
		if err := store.CreateCredential(ctx, authguard.CredentialRecord{
			UserID:       id,
			Identifier:   identifier,
			Role:         "driver",
			Status:       authguard.AccountActive,
			PasswordHash: hash,
			PasswordSalt: salt,
		}); err != nil {
			return nil, err
		}
		res, err := engine.Login(ctx, identifier, password, authguard.SessionContext{
			IP:        fmt.Sprintf("192.0.2.%d", i%250+1),
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		}, false)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", identifier, err)
		}
		states[i] = sessionState{access: res.Tokens.AccessToken, refresh: res.Tokens.RefreshToken}
	}
	return states, nil
}

var phaseOrder = []string{"validate", "rotate", "score"}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	Total    time.Duration `json:"total"`
	Ops      int           `json:"ops"`
	Failures int64         `json:"failures"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
	OpsPerS  float64       `json:"ops_per_sec"`
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{Total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		Total:    total,
		Ops:      len(samples),
		Failures: failures,
		P50:      percentile(samples, 50),
		P95:      percentile(samples, 95),
		P99:      percentile(samples, 99),
		OpsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.Ops,
		s.Failures,
		s.Total.Round(time.Millisecond),
		s.OpsPerS,
		s.P50.Round(time.Microsecond),
		s.P95.Round(time.Microsecond),
		s.P99.Round(time.Microsecond),
	)
}

func writeResults(path string, results map[string]phaseStats) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readResults(path string) (map[string]phaseStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]phaseStats
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
