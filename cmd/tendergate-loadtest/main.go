// Command tendergate-loadtest measures the durable session store and the
// permission evaluator under concurrency. Without -redis-addr it runs
// against an embedded miniredis, so a laptop run needs no infrastructure.
package main

import (
	"context"
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

	"github.com/procurity/tendergate/permission"
	"github.com/procurity/tendergate/session"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of session namespaces to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "storage namespace prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	var client *redis.Client
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	stores := make([]*session.Store, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		stores[i] = session.NewStore(client, fmt.Sprintf("%s-%d", *prefix, i))
		if err := stores[i].Save(ctx, buildSnapshot(i)); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loadStats := runLoadPhase(ctx, stores, *ops, *concurrency)
	saveStats := runSavePhase(ctx, stores, *ops, *concurrency)
	evalStats := runEvaluatePhase(*ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("load", loadStats)
	printStats("save", saveStats)
	printStats("evaluate", evalStats)
}

func runLoadPhase(ctx context.Context, stores []*session.Store, ops, concurrency int) phaseStats {
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
				idx := r.Intn(len(stores))
				t0 := time.Now()
				_, err := stores[idx].Load(ctx)
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

func runSavePhase(ctx context.Context, stores []*session.Store, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(stores))
				t0 := time.Now()
				err := stores[idx].Save(ctx, buildSnapshot(idx))
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

// runEvaluatePhase exercises the in-memory rule chain alone; it should be
// orders of magnitude faster than the storage phases.
func runEvaluatePhase(ops, concurrency int) phaseStats {
	set := permission.FromGrants(map[string]bool{
		"canCreateTenders":    true,
		"canViewApplications": true,
		"canAcceptReject":     true,
	})
	subject := permission.Subject{ID: "u1", OrganizationID: "org1"}
	resources := [...]permission.Resource{
		{Kind: permission.KindTender, OrganizationID: "org1"},
		{Kind: permission.KindApplication, OrganizationID: "org1"},
		{Kind: permission.KindTender, OrganizationID: "other"},
		{Kind: permission.KindVerification, OrganizationID: "org1"},
	}
	actions := [...]permission.Action{
		permission.ActionView,
		permission.ActionCreate,
		permission.ActionAccept,
		permission.ActionManage,
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				permission.CanPerform(subject, set, resources[i%len(resources)], actions[i%len(actions)])
				d := time.Since(t0)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, 0)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
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
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSnapshot(i int) *session.Snapshot {
	return &session.Snapshot{
		Token:     fmt.Sprintf("token-%d", i),
		ExpiresAt: time.Now().Add(24 * time.Hour).UnixMilli(),
		Subject: session.SubjectRecord{
			ID:             fmt.Sprintf("u%d", i),
			Email:          fmt.Sprintf("user%d@example.com", i),
			Name:           "Load Test",
			Role:           "team_member",
			OrganizationID: "org1",
			MemberRole:     "member",
		},
	}
}
