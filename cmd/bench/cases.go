// README: Benchmark cases; environment, HTTP contract, multilingual, concurrency and load checks against a running API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

// searchBody is the part of a search response the bench inspects.
type searchBody struct {
	RequestID string `json:"requestId"`
	Results   []struct {
		PlaceID string `json:"placeId"`
	} `json:"results"`
	Assist *struct {
		Message string `json:"message"`
		Source  string `json:"source"`
	} `json:"assist"`
	Meta struct {
		Mode          string `json:"mode"`
		FailureReason string `json:"failureReason"`
		Language      string `json:"language"`
		Capabilities  *struct {
			ClosedNowIsDerived bool `json:"closedNowIsDerived"`
		} `json:"capabilities"`
	} `json:"meta"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "quota store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "cache and session tier reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables named in the migration exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},

		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		httpCaseMethod("API: metrics", http.MethodGet, base+"/metrics", nil, []int{200}, []int{404}),
		httpCaseMethod("API: debug stats", http.MethodGet, base+"/debug/stats", nil, []int{200}, []int{404}),

		// Contract
		httpCase("Search: valid query", base+"/api/search", map[string]any{
			"query": "coffee near Taipei 101",
		}, []int{200}, nil),
		httpCase("Search: empty query -> 400", base+"/api/search", map[string]any{"query": "  "}, []int{400}, nil),
		httpCase("Search: invalid location -> 400", base+"/api/search", map[string]any{
			"query":    "ramen",
			"location": map[string]any{"lat": 123.0, "lng": 456.0},
		}, []int{400}, nil),
		httpCase("Search: unknown openNow -> 400", base+"/api/search", map[string]any{
			"query":   "ramen",
			"filters": map[string]any{"openNow": "sometimes"},
		}, []int{400}, nil),
		httpCaseMethod("Assist: unknown request -> 404", http.MethodGet, base+"/api/search/unknown/assist", nil, []int{404}, nil),

		{
			Name:  "Search: closed-now is derived",
			Focus: "exclude is filtered locally and flagged",
			Run: func(ctx context.Context, r *Runner) Result {
				body, latency, err := r.search(ctx, map[string]any{
					"query":   "ramen in Shibuya",
					"filters": map[string]any{"openNow": false},
				})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if body.Meta.Mode == "RECOVERY" && body.Meta.FailureReason != "NO_RESULTS" {
					return Result{Status: "PENDING", Latency: latency, Note: "upstream failure: " + body.Meta.FailureReason}
				}
				if body.Meta.Capabilities == nil || !body.Meta.Capabilities.ClosedNowIsDerived {
					return Result{Status: "FAIL", Latency: latency, Note: "closedNowIsDerived not set"}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("results=%d", len(body.Results))}
			},
		},
		{
			Name:  "Search: deferred narration",
			Focus: "skipNarration then GET assist",
			Run: func(ctx context.Context, r *Runner) Result {
				body, _, err := r.search(ctx, map[string]any{"query": "tacos in Austin", "skipNarration": true})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if body.Assist != nil {
					return Result{Status: "FAIL", Note: "assist present despite skipNarration"}
				}
				start := time.Now()
				status, err := r.get(ctx, base+"/api/search/"+body.RequestID+"/assist")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", status)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},

		// Multilingual
		languageCase("Language: ja", "深夜営業のラーメン 渋谷", "ja"),
		languageCase("Language: zh-TW", "信義區的咖啡廳", "zh-TW"),
		languageCase("Language: he", "פיצה בתל אביב", "he"),
		languageCase("Language: ru", "кофейня в Москве", "ru"),

		// Concurrency
		{
			Name:  "Concurrency: identical searches agree",
			Focus: "coalesced provider calls give every caller the same answer",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentIdentical(ctx, r)
			},
		},
		manualCase("Capacity: shed under overload", "lower gate.max_concurrent and watch for CAPACITY_EXCEEDED"),
		manualCase("Error: Redis down -> searches still served", "stop Redis and confirm 200s with local caches"),

		// Load
		{
			Name:  "Perf: search throughput",
			Focus: "latency percentiles and mode distribution",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r)
			},
		},
	}
}

func (r *Runner) search(ctx context.Context, payload map[string]any) (searchBody, time.Duration, error) {
	var body searchBody
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/search", strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return body, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		return body, latency, fmt.Errorf("status=%d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return body, latency, err
	}
	return body, latency, nil
}

func (r *Runner) get(ctx context.Context, url string) (int, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func languageCase(name, query, want string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "response language follows the query",
		Run: func(ctx context.Context, r *Runner) Result {
			body, latency, err := r.search(ctx, map[string]any{"query": query})
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if body.Meta.Language != want {
				return Result{Status: "FAIL", Latency: latency, Note: "language=" + body.Meta.Language}
			}
			note := "mode=" + body.Meta.Mode
			if body.Assist != nil {
				note += " assist=" + body.Assist.Source
			}
			return Result{Status: "PASS", Latency: latency, Note: note}
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, method, url, reader)
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)

			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			if contains(pendingStatuses, resp.StatusCode) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func concurrentIdentical(ctx context.Context, r *Runner) Result {
	payload := map[string]any{"query": r.cfg.Query, "skipNarration": true}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
		errs int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _, err := r.search(ctx, payload)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				return
			}
			ids := make([]string, 0, len(body.Results))
			for _, v := range body.Results {
				ids = append(ids, v.PlaceID)
			}
			seen[body.Meta.Mode+"|"+strings.Join(ids, ",")]++
		}()
	}
	wg.Wait()

	if errs == r.cfg.Concurrency {
		return Result{Status: "FAIL", Note: "every request failed"}
	}
	if len(seen) > 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("distinct answers=%d errors=%d", len(seen), errs)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("requests=%d errors=%d", r.cfg.Concurrency, errs)}
}

func perfLoad(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		latencies []time.Duration
		outcomes  = map[string]int{}
		errCount  int
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				body, latency, err := r.search(ctx, map[string]any{"query": r.cfg.Query})
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					latencies = append(latencies, latency)
					outcomes[body.Meta.Mode+"/"+body.Meta.FailureReason]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(latencies) == 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("no requests completed, errors=%d", errCount)}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	rps := float64(len(latencies)) / r.cfg.Duration.Seconds()
	return Result{
		Status:  "PASS",
		Latency: percentile(latencies, 0.5),
		Note: fmt.Sprintf("rps=%.1f p95=%s p99=%s errors=%d outcomes=%s",
			rps, percentile(latencies, 0.95), percentile(latencies, 0.99), errCount, formatOutcomes(outcomes)),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func formatOutcomes(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m[k]))
	}
	return strings.Join(parts, ",")
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
