package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	defaultQty        = int32(1)
	seedPriceMinor    = int64(1500)
)

type loadMode string

const (
	modeBrowse       loadMode = "browse"
	modeCart         loadMode = "cart"
	modeCartCheckout loadMode = "cart-checkout"
)

type config struct {
	baseURL     string
	token       string
	adminToken  string
	productID   string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if statusCode >= 200 && statusCode < 300 {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[codeLabel(statusCode)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func codeLabel(statusCode int) string {
	if statusCode <= 0 {
		return "transport-error"
	}
	return fmt.Sprintf("%d", statusCode)
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "storefront base URL")
	flag.StringVar(&cfg.token, "token", "", "bearer token for cart scenarios (fallback: VERDORA_LOADTEST_TOKEN)")
	flag.StringVar(&cfg.adminToken, "admin-token", "", "bearer token with admin rights, used to seed a product when product-id is empty")
	flag.StringVar(&cfg.productID, "product-id", "", "product id to add to the cart; empty triggers seeding via admin API")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeBrowse), "load mode: browse | cart | cart-checkout")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	if cfg.token == "" {
		cfg.token = os.Getenv("VERDORA_LOADTEST_TOKEN")
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("base-url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.mode != modeBrowse && cfg.token == "" {
		return cfg, errors.New("token is required for cart scenarios")
	}
	if cfg.mode != modeBrowse && cfg.productID == "" && cfg.adminToken == "" {
		return cfg, errors.New("product-id or admin-token is required for cart scenarios")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeBrowse:
		return modeBrowse, nil
	case modeCart:
		return modeCart, nil
	case modeCartCheckout:
		return modeCartCheckout, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

type apiClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	col     *collector
}

type apiResponse struct {
	status int
	body   []byte
}

func (c *apiClient) call(method, path, token, key string, payload interface{}, metric string) (apiResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return apiResponse{}, err
		}
		body = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apiResponse{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.col.record(metric, time.Since(start), 0)
		return apiResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	c.col.record(metric, time.Since(start), resp.StatusCode)
	if err != nil {
		return apiResponse{}, err
	}
	if resp.StatusCode >= 400 {
		return apiResponse{status: resp.StatusCode, body: data}, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return apiResponse{status: resp.StatusCode, body: data}, nil
}

// seedProduct создаёт товар через admin API для cart-сценариев.
func seedProduct(client *apiClient, adminToken, runID string) (string, error) {
	payload := map[string]interface{}{
		"name":        fmt.Sprintf("Load Plant %s", runID),
		"description": "synthetic load test product",
		"category":    "plants",
		"price_minor": seedPriceMinor,
		"stock":       int32(100000),
	}

	resp, err := client.call(http.MethodPost, "/api/v1/admin/products", adminToken, "", payload, "SeedProduct")
	if err != nil {
		return "", err
	}

	var product struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &product); err != nil {
		return "", fmt.Errorf("decode seeded product: %w", err)
	}
	if product.ID == "" {
		return "", errors.New("seeded product has empty id")
	}
	return product.ID, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	col := newCollector()
	client := &apiClient{
		baseURL: strings.TrimRight(cfg.baseURL, "/"),
		timeout: cfg.timeout,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.concurrency * 2,
				MaxIdleConnsPerHost: cfg.concurrency * 2,
			},
		},
		col: col,
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	productID := cfg.productID
	if cfg.mode != modeBrowse && productID == "" {
		productID, err = seedProduct(client, cfg.adminToken, runID)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to seed product: %v\n", err)
			os.Exit(1)
		}
	}

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, productID, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(client *apiClient, cfg config, productID string, index int, runID string, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := http.StatusOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	fail := func(resp apiResponse, err error) error {
		scenarioCode = resp.status
		return err
	}

	if resp, err := client.call(http.MethodGet, "/api/v1/products", "", "", nil, "ListProducts"); err != nil {
		return fail(resp, err)
	}

	if cfg.mode == modeBrowse {
		return nil
	}

	addPayload := map[string]interface{}{
		"product_id": productID,
		"quantity":   defaultQty,
	}
	if resp, err := client.call(http.MethodPost, "/api/v1/cart/items", cfg.token, "", addPayload, "AddCartItem"); err != nil {
		return fail(resp, err)
	}

	cartResp, err := client.call(http.MethodGet, "/api/v1/cart", cfg.token, "", nil, "GetCart")
	if err != nil {
		return fail(cartResp, err)
	}

	if cfg.mode == modeCart {
		return nil
	}

	var cartBody struct {
		TotalMinor int64 `json:"total_minor"`
	}
	if err := json.Unmarshal(cartResp.body, &cartBody); err != nil {
		scenarioCode = http.StatusInternalServerError
		return fmt.Errorf("decode cart: %w", err)
	}
	amount := cartBody.TotalMinor
	if amount <= 0 {
		amount = seedPriceMinor
	}

	checkoutPayload := map[string]interface{}{
		"amount_minor": amount,
		"order_name":   "load test order",
	}
	checkoutKey := fmt.Sprintf("lt-checkout-%s-%d", runID, index)
	checkoutResp, err := client.call(http.MethodPost, "/api/v1/checkout", cfg.token, checkoutKey, checkoutPayload, "Checkout")
	if err != nil {
		return fail(checkoutResp, err)
	}

	var checkoutBody struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.Unmarshal(checkoutResp.body, &checkoutBody); err != nil {
		scenarioCode = http.StatusInternalServerError
		return fmt.Errorf("decode checkout response: %w", err)
	}

	pidx := extractPidx(checkoutBody.RedirectURL)
	if pidx == "" {
		// Без pidx окно оплаты закрыть нельзя, сценарий ограничивается инициацией.
		return nil
	}

	callbackPath := "/api/v1/payment/callback?pidx=" + url.QueryEscape(pidx)
	if resp, err := client.call(http.MethodGet, callbackPath, "", "", nil, "PaymentCallback"); err != nil {
		return fail(resp, err)
	}

	return nil
}

func extractPidx(redirectURL string) string {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("pidx")
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
