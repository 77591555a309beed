package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	Endpoint     string
	Secret       string
	Format       string
	Total        int
	Rate         int
	Concurrency  int
	DupPercent   int
	NoTxPercent  int
	CampaignPool int
}

func parseFlags() *Config {
	c := &Config{}
	flag.StringVar(&c.Endpoint, "endpoint", "http://localhost:8080/integrations/keitaro/postback", "Postback URL")
	flag.StringVar(&c.Secret, "secret", "", "Profile secret sent as ?secret= (required)")
	flag.StringVar(&c.Format, "format", "form", "Body encoding: form or json")
	flag.IntVar(&c.Total, "total", 5000, "Total postbacks")
	flag.IntVar(&c.Rate, "rate", 100, "Postbacks per second")
	flag.IntVar(&c.Concurrency, "concurrency", 0, "Worker count (0=auto)")
	flag.IntVar(&c.DupPercent, "duplicate-percent", 10, "Share of postbacks that replay an earlier transaction_id")
	flag.IntVar(&c.NoTxPercent, "no-tx-percent", 0, "Share of postbacks sent without transaction_id and click_id")
	flag.IntVar(&c.CampaignPool, "campaigns", 20, "Number of distinct campaign ids")
	flag.Parse()

	if c.Secret == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret is required")
		flag.Usage()
		os.Exit(1)
	}
	if c.Format != "form" && c.Format != "json" {
		fmt.Fprintln(os.Stderr, "Error: -format must be form or json")
		os.Exit(1)
	}
	if c.Concurrency == 0 {
		c.Concurrency = max(c.Rate/10, 10)
	}
	c.DupPercent = clampPercent(c.DupPercent)
	c.NoTxPercent = clampPercent(c.NoTxPercent)
	c.CampaignPool = max(c.CampaignPool, 1)
	return c
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

// Stats counts responses by the outcome the relay reported.
type Stats struct {
	mu       sync.Mutex
	outcomes map[string]uint64
	failures uint64
	latency  int64 // microseconds
	answered uint64
}

func newStats() *Stats {
	return &Stats{outcomes: make(map[string]uint64)}
}

func (s *Stats) Add(outcome string, d time.Duration) {
	s.mu.Lock()
	s.outcomes[outcome]++
	s.mu.Unlock()
	atomic.AddUint64(&s.answered, 1)
	atomic.AddInt64(&s.latency, d.Microseconds())
}

func (s *Stats) AddFailure() {
	atomic.AddUint64(&s.failures, 1)
}

func (s *Stats) Snapshot() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.outcomes))
	for k, v := range s.outcomes {
		out[k] = v
	}
	return out
}

func (s *Stats) StartLogger(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			answered := atomic.LoadUint64(&s.answered)
			avg := 0.0
			if answered > 0 {
				avg = float64(atomic.LoadInt64(&s.latency)) / float64(answered) / 1000.0
			}
			log.Printf("[STATS] 1s -> answered: %d | transport errors: %d | avg latency: %.2fms | %v",
				answered-last, atomic.LoadUint64(&s.failures), avg, s.Snapshot())
			last = answered
		}
	}
}

// TxPool remembers recent transaction ids so duplicates can be replayed.
type TxPool struct {
	mu  sync.Mutex
	buf []url.Values
	max int
}

func NewTxPool(max int) *TxPool {
	return &TxPool{buf: make([]url.Values, 0, max), max: max}
}

func (p *TxPool) Add(v url.Values) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) >= p.max {
		p.buf = p.buf[1:]
	}
	p.buf = append(p.buf, v)
}

func (p *TxPool) Random(rng *rand.Rand) (url.Values, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil, false
	}
	return p.buf[rng.Intn(len(p.buf))], true
}

func main() {
	cfg := parseFlags()
	stats := newStats()
	pool := NewTxPool(10000)

	target, err := url.Parse(cfg.Endpoint)
	if err != nil {
		log.Fatalf("parse endpoint: %v", err)
	}
	q := target.Query()
	q.Set("secret", cfg.Secret)
	target.RawQuery = q.Encode()

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency,
			MaxIdleConnsPerHost: cfg.Concurrency,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	log.Printf("Starting postback load: target=%s rate=%d/s total=%d workers=%d dup=%d%% format=%s",
		cfg.Endpoint, cfg.Rate, cfg.Total, cfg.Concurrency, cfg.DupPercent, cfg.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stats.StartLogger(ctx)

	jobs := make(chan struct{}, cfg.Rate*2)
	var wg sync.WaitGroup
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		w := &worker{
			cfg:    cfg,
			client: client,
			target: target.String(),
			stats:  stats,
			pool:   pool,
			rng:    rand.New(rand.NewSource(seed.Int63())),
		}
		go w.run(jobs, &wg)
	}

	remaining := cfg.Total
	for remaining > 0 {
		start := time.Now()
		batch := min(cfg.Rate, remaining)
		for i := 0; i < batch; i++ {
			jobs <- struct{}{}
		}
		remaining -= batch
		if elapsed := time.Since(start); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}

	close(jobs)
	wg.Wait()

	log.Printf("DONE. outcomes=%v transport_errors=%d", stats.Snapshot(), atomic.LoadUint64(&stats.failures))
}

type worker struct {
	cfg    *Config
	client *http.Client
	target string
	stats  *Stats
	pool   *TxPool
	rng    *rand.Rand
}

func (w *worker) run(jobs <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for range jobs {
		start := time.Now()
		outcome, err := w.send(w.pick())
		if err != nil {
			w.stats.AddFailure()
			continue
		}
		w.stats.Add(outcome, time.Since(start))
	}
}

func (w *worker) pick() url.Values {
	if w.cfg.DupPercent > 0 && w.rng.Intn(100) < w.cfg.DupPercent {
		if v, ok := w.pool.Random(w.rng); ok {
			return v
		}
	}
	v := w.randomPostback()
	if v.Get("transaction_id") != "" {
		w.pool.Add(v)
	}
	return v
}

var (
	statuses  = []string{"lead", "registration", "sale", "deposit", "rejected"}
	sources   = []string{"fb_ads", "google", "tt_push", "native"}
	countries = []string{"DE", "AT", "PL", "BR", "US"}
)

func (w *worker) randomPostback() url.Values {
	v := url.Values{}
	v.Set("status", statuses[w.rng.Intn(len(statuses))])
	v.Set("campaign_id", fmt.Sprintf("camp%d", w.rng.Intn(w.cfg.CampaignPool)))
	v.Set("campaign_name", "Load campaign")
	v.Set("offer_name", "Load offer")
	v.Set("source", sources[w.rng.Intn(len(sources))])
	v.Set("country", countries[w.rng.Intn(len(countries))])
	v.Set("conversion_revenue", fmt.Sprintf("%d.%02d", w.rng.Intn(200), w.rng.Intn(100)))
	v.Set("currency", "USD")
	v.Set("sub_id_1", fmt.Sprintf("user_%d", w.rng.Intn(100000)))
	if w.rng.Intn(100) >= w.cfg.NoTxPercent {
		v.Set("transaction_id", fmt.Sprintf("tx_%d_%d", time.Now().UnixNano(), w.rng.Int63()))
	}
	return v
}

type relayResponse struct {
	OK     bool   `json:"ok"`
	Dedup  bool   `json:"dedup"`
	Routed *bool  `json:"routed"`
	Error  string `json:"error"`
}

func (w *worker) send(v url.Values) (string, error) {
	var (
		body        io.Reader
		contentType string
	)
	if w.cfg.Format == "json" {
		flat := make(map[string]string, len(v))
		for k := range v {
			flat[k] = v.Get(k)
		}
		raw, err := json.Marshal(flat)
		if err != nil {
			return "", err
		}
		body, contentType = strings.NewReader(string(raw)), "application/json"
	} else {
		body, contentType = strings.NewReader(v.Encode()), "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequest(http.MethodPost, w.target, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("http status: %d", resp.StatusCode)
	}

	var out relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return outcomeLabel(out), nil
}

func outcomeLabel(r relayResponse) string {
	switch {
	case r.Dedup:
		return "duplicate"
	case r.Routed != nil && !*r.Routed:
		return "not_routed"
	case r.OK:
		return "ok"
	case r.Error != "":
		return r.Error
	default:
		return "unknown"
	}
}
