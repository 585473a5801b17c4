// Команда loadtest обстреливает HTTP API созданием заказов и печатает
// сводку по латентности. Перед запуском сама заводит клиента и товары,
// чтобы тест работал на пустой базе.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type config struct {
	baseURL     string
	apiKey      string
	concurrency int
	requests    int
	timeout     time.Duration
}

type result struct {
	latency time.Duration
	status  int
	err     error
}

type summary struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: cfg.timeout}

	customerID, productIDs, err := seedFixtures(ctx, client, cfg)
	if err != nil {
		fail("seed fixtures: %v", err)
	}

	log.WithFields(log.Fields{
		"base_url":    cfg.baseURL,
		"concurrency": cfg.concurrency,
		"requests":    cfg.requests,
	}).Info("starting load test")

	results := fire(ctx, client, cfg, customerID, productIDs)
	report := summarize(results)

	fmt.Printf("total=%d ok=%d failed=%d elapsed=%s\n", report.Total, report.Succeeded, report.Failed, report.Elapsed.Round(time.Millisecond))
	fmt.Printf("p50=%s p95=%s p99=%s max=%s\n",
		report.P50.Round(time.Millisecond),
		report.P95.Round(time.Millisecond),
		report.P99.Round(time.Millisecond),
		report.Max.Round(time.Millisecond))

	if report.Failed > 0 {
		os.Exit(1)
	}
}

func readConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of the commerce service")
	flag.StringVar(&cfg.apiKey, "api-key", "", "API key for write requests (fallback: API_KEY)")
	flag.IntVar(&cfg.concurrency, "concurrency", 8, "number of concurrent workers")
	flag.IntVar(&cfg.requests, "requests", 200, "total number of orders to create")
	flag.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("API_KEY")
	}
	if cfg.apiKey == "" {
		return config{}, fmt.Errorf("api key is required (-api-key or API_KEY)")
	}
	if cfg.concurrency <= 0 {
		return config{}, fmt.Errorf("concurrency must be > 0")
	}
	if cfg.requests <= 0 {
		return config{}, fmt.Errorf("requests must be > 0")
	}
	cfg.baseURL = strings.TrimRight(cfg.baseURL, "/")

	return cfg, nil
}

// seedFixtures создаёт клиента и пару товаров для обстрела.
func seedFixtures(ctx context.Context, client *http.Client, cfg config) (string, []string, error) {
	suffix := uuid.NewString()[:8]

	customerID, err := createResource(ctx, client, cfg, "/api/v1/customers", map[string]any{
		"email": fmt.Sprintf("loadtest-%s@example.com", suffix),
		"name":  "Load Test " + suffix,
	})
	if err != nil {
		return "", nil, err
	}

	productIDs := make([]string, 0, 2)
	for i, price := range []int64{500, 1500} {
		id, err := createResource(ctx, client, cfg, "/api/v1/products", map[string]any{
			"sku":        fmt.Sprintf("LOAD-%s-%d", suffix, i),
			"name":       fmt.Sprintf("Load Product %d", i),
			"priceCents": price,
		})
		if err != nil {
			return "", nil, err
		}
		productIDs = append(productIDs, id)
	}

	return customerID, productIDs, nil
}

func createResource(ctx context.Context, client *http.Client, cfg config, path string, payload map[string]any) (string, error) {
	status, body, err := post(ctx, client, cfg, path, payload, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("%s returned %d: %s", path, status, body)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode %s response: %w", path, err)
	}
	return created.ID, nil
}

func fire(ctx context.Context, client *http.Client, cfg config, customerID string, productIDs []string) []result {
	jobs := make(chan int)
	results := make([]result, cfg.requests)

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = createOrder(ctx, client, cfg, customerID, productIDs, i)
			}
		}()
	}

	for i := 0; i < cfg.requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func createOrder(ctx context.Context, client *http.Client, cfg config, customerID string, productIDs []string, seq int) result {
	items := make([]map[string]any, 0, len(productIDs))
	for i, productID := range productIDs {
		items = append(items, map[string]any{
			"productId": productID,
			"qty":       1 + (seq+i)%3,
		})
	}

	start := time.Now()
	status, _, err := post(ctx, client, cfg, "/api/v1/orders", map[string]any{
		"customerId": customerID,
		"items":      items,
	}, uuid.NewString())
	latency := time.Since(start)

	if err == nil && status != http.StatusCreated {
		err = fmt.Errorf("unexpected status %d", status)
	}
	return result{latency: latency, status: status, err: err}
}

func post(ctx context.Context, client *http.Client, cfg config, path string, payload map[string]any, idempotencyKey string) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, err
}

func summarize(results []result) summary {
	report := summary{Total: len(results)}

	latencies := make([]time.Duration, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
		latencies = append(latencies, res.latency)
		report.Elapsed += res.latency
		if res.latency > report.Max {
			report.Max = res.latency
		}
	}

	report.P50 = percentile(latencies, 50)
	report.P95 = percentile(latencies, 95)
	report.P99 = percentile(latencies, 99)
	return report
}

// percentile возвращает p-й перцентиль по методу ближайшего ранга.
func percentile(latencies []time.Duration, p int) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
