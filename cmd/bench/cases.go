// README: Smoke and load cases for the ride lifecycle, eligibility, pricing and archive endpoints, plus DB/Redis checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// booked is the ride created by the first booking case; later cases act on it.
	booked struct {
		id    string
		token string
	}
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
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
		res.Name = tc.Name
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
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusFail, Note: "db not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusFail, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodGet, "/health", nil, "", http.StatusOK)
			return res
		}},

		{Name: "Ride: book (valid)", Run: func(ctx context.Context, r *Runner) Result {
			res, body := r.call(ctx, http.MethodPost, "/api/rides", r.booking(), "", http.StatusCreated)
			if res.Status != statusPass {
				return res
			}
			var out struct {
				Ride struct {
					ID string `json:"id"`
				} `json:"ride"`
				CancelToken string `json:"cancel_token"`
			}
			if err := json.Unmarshal(body, &out); err != nil || out.Ride.ID == "" || out.CancelToken == "" {
				return Result{Status: statusFail, Note: "missing ride id or cancel token"}
			}
			r.booked.id, r.booked.token = out.Ride.ID, out.CancelToken
			return res
		}},
		{Name: "Ride: book (missing fields -> 400)", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodPost, "/api/rides", map[string]any{"customer_name": "x"}, "", http.StatusBadRequest)
			return res
		}},
		{Name: "Pricing: quote", Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, http.MethodPost, "/api/quotes", r.quote(), "", http.StatusOK)
			return res
		}},
		{Name: "Pricing: quote unknown destination -> 422", Run: func(ctx context.Context, r *Runner) Result {
			q := r.quote()
			q["destination"] = "Nowhere In Particular"
			res, _ := r.call(ctx, http.MethodPost, "/api/quotes", q, "", http.StatusUnprocessableEntity)
			return res
		}},
		{Name: "Cancel: wrong token -> 403", Run: func(ctx context.Context, r *Runner) Result {
			if r.booked.id == "" {
				return Result{Status: statusSkip, Note: "no booked ride"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/rides/"+r.booked.id+"/cancel",
				map[string]any{"token": strings.Repeat("0", 32)}, "", http.StatusForbidden)
			return res
		}},

		{Name: "Driver: list available", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.DriverToken == "" {
				return Result{Status: statusSkip, Note: "no driver token"}
			}
			res, _ := r.call(ctx, http.MethodGet, "/api/driver/rides/available", nil, r.cfg.DriverToken, http.StatusOK)
			return res
		}},
		{Name: "Driver: eligibility of booked ride", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.DriverToken == "" || r.booked.id == "" {
				return Result{Status: statusSkip, Note: "no driver token or booked ride"}
			}
			res, _ := r.call(ctx, http.MethodGet, "/api/driver/rides/"+r.booked.id+"/eligibility", nil, r.cfg.DriverToken, http.StatusOK)
			return res
		}},
		{Name: "Concurrency: accept same ride once", Run: concurrentAccept},
		{Name: "Cancel: customer cancel with token", Run: func(ctx context.Context, r *Runner) Result {
			if r.booked.id == "" {
				return Result{Status: statusSkip, Note: "no booked ride"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/rides/"+r.booked.id+"/cancel",
				map[string]any{"token": r.booked.token}, "", http.StatusOK)
			return res
		}},

		{Name: "Admin: archive months", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.AdminToken == "" {
				return Result{Status: statusSkip, Note: "no admin token"}
			}
			res, _ := r.call(ctx, http.MethodGet, "/api/admin/archive", nil, r.cfg.AdminToken, http.StatusOK)
			return res
		}},
		{Name: "Admin: archive run", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.AdminToken == "" {
				return Result{Status: statusSkip, Note: "no admin token"}
			}
			res, _ := r.call(ctx, http.MethodPost, "/api/admin/archive/run", nil, r.cfg.AdminToken, http.StatusOK, http.StatusConflict)
			return res
		}},
		{Name: "Admin: archive summary bad month -> 400", Run: func(ctx context.Context, r *Runner) Result {
			if r.cfg.AdminToken == "" {
				return Result{Status: statusSkip, Note: "no admin token"}
			}
			res, _ := r.call(ctx, http.MethodGet, "/api/admin/archive/March", nil, r.cfg.AdminToken, http.StatusBadRequest)
			return res
		}},

		{Name: "Perf: quote throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, "/api/quotes", r.quote())
		}},
	}
}

// booking targets a week ahead so confirm and cancel windows stay open.
func (r *Runner) booking() map[string]any {
	when := time.Now().AddDate(0, 0, 7)
	return map[string]any{
		"customer_name":  "Bench Customer",
		"customer_email": "bench@example.com",
		"customer_phone": "+15555550100",
		"pickup":         "1 Bench Way",
		"destination":    r.cfg.Destination,
		"date":           when.Format("2006-01-02"),
		"time":           "10:00",
		"passengers":     1,
		"vehicle_type":   r.cfg.VehicleType,
	}
}

func (r *Runner) quote() map[string]any {
	b := r.booking()
	return map[string]any{
		"destination":  b["destination"],
		"vehicle_type": b["vehicle_type"],
		"date":         b["date"],
		"time":         b["time"],
	}
}

// call sends one request and passes when the response status is in ok.
// 404 and 501 report PENDING so a partially deployed server is not a failure.
func (r *Runner) call(ctx context.Context, method, path string, body any, token string, ok ...int) (Result, []byte) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}, nil
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)
	note := fmt.Sprintf("status=%d", resp.StatusCode)

	switch {
	case contains(ok, resp.StatusCode):
		return Result{Status: statusPass, Latency: latency, Note: note}, out
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented:
		return Result{Status: statusPending, Latency: latency, Note: note}, out
	default:
		return Result{Status: statusFail, Latency: latency, Note: note + " " + strings.TrimSpace(string(out))}, out
	}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

// concurrentAccept books a fresh ride and races Concurrency accepts for it;
// at most one may succeed.
func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.cfg.DriverToken == "" {
		return Result{Status: statusSkip, Note: "no driver token"}
	}
	res, body := r.call(ctx, http.MethodPost, "/api/rides", r.booking(), "", http.StatusCreated)
	if res.Status != statusPass {
		return res
	}
	var out struct {
		Ride struct {
			ID string `json:"id"`
		} `json:"ride"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Ride.ID == "" {
		return Result{Status: statusFail, Note: "missing ride id"}
	}
	path := "/api/driver/rides/" + out.Ride.ID + "/accept"

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succ      int
		conflicts int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := r.call(ctx, http.MethodPost, path, nil, r.cfg.DriverToken, http.StatusOK)
			mu.Lock()
			defer mu.Unlock()
			if res.Status == statusPass {
				succ++
			} else if strings.HasPrefix(res.Note, "status=409") {
				conflicts++
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflicts=%d", succ, conflicts)
	if succ == 1 {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, path string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var (
		count    int64
		errCount int64
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+path, bytes.NewReader(b))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil || resp.StatusCode >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
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
