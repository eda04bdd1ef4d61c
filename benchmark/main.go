package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/rand"
)

var (
	target  = flag.String("target", "http://localhost:8123", "tablepipe API")
	table   = flag.String("table", "users", "table to browse")
	clients = flag.Int("clients", 4, "concurrent clients")
	rps     = flag.Int("rps", 10, "requests per second per client")
	sortBy  = flag.String("sort", "", "columns to sort by, picked at random per request")
	terms   = flag.String("search", "", "search terms, picked at random per request")
	timeout = flag.Duration("timeout", time.Minute, "benchmark duration")
)

var requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "view_request_duration_seconds",
	Help: "Duration of table view requests in seconds",
	ConstLabels: prometheus.Labels{
		"job": "tablepipe_benchmark",
	},
	Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

var totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "total_view_requests",
	Help: "Table view requests by response code",
	ConstLabels: prometheus.Labels{
		"job": "tablepipe_benchmark",
	},
}, []string{"code"})

var totalBytes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "total_view_bytes",
	Help: "Bytes of table view responses",
	ConstLabels: prometheus.Labels{
		"job": "tablepipe_benchmark",
	},
})

func main() {
	flag.Parse()
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", nil); err != nil {
			panic(err)
		}
	}()
	runBenchmark(*clients, *rps, *timeout)
}

func split(s string) []string {
	var res []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			res = append(res, f)
		}
	}
	return res
}

func viewURL(rnd *rand.Rand, columns, searches []string) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(rnd.Intn(10)+1))
	if len(columns) > 0 {
		q.Set("sort", columns[rnd.Intn(len(columns))])
		q.Set("order", []string{"asc", "desc"}[rnd.Intn(2)])
	}
	if len(searches) > 0 && rnd.Intn(2) == 0 {
		q.Set("search", searches[rnd.Intn(len(searches))])
	}
	return fmt.Sprintf("%s/tables/%s?%s", *target, url.PathEscape(*table), q.Encode())
}

func runBenchmark(clients int, rps int, timeout time.Duration) {
	columns, searches := split(*sortBy), split(*terms)
	wg := &sync.WaitGroup{}
	var working int32 = 1
	var sent int64
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(uint64(time.Now().UnixNano()) + uint64(i)))
			t := time.NewTicker(time.Second / time.Duration(max(rps, 1)))
			defer t.Stop()
			for range t.C {
				if atomic.LoadInt32(&working) != 1 {
					return
				}
				start := time.Now()
				res, err := http.Get(viewURL(rnd, columns, searches))
				if err != nil {
					totalRequests.WithLabelValues("error").Inc()
					continue
				}
				n, _ := io.Copy(io.Discard, res.Body)
				res.Body.Close()
				requestDuration.Observe(time.Since(start).Seconds())
				totalRequests.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
				totalBytes.Add(float64(n))
				atomic.AddInt64(&sent, 1)
			}
		}(i)
	}
	time.Sleep(timeout)
	atomic.StoreInt32(&working, 0)
	wg.Wait()
	fmt.Printf("%d requests in %v\n", atomic.LoadInt64(&sent), timeout)
}
