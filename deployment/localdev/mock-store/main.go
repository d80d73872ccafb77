// Command mock-store is a fake metric store for local development. It serves
// deterministic daily series for the standard marketing metrics, with a spike
// injected near the end of each revenue series so detection has something to
// find.
package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"
)

type samplePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type queryRequest struct {
	Metric string `json:"metric"`
	From   string `json:"from"`
	To     string `json:"to"`
}

var metricBase = map[string]float64{
	"revenue":     5000,
	"views":       15000,
	"engagement":  800,
	"conversions": 120,
	"spend":       2000,
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/metrics/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		from, err1 := time.Parse(time.RFC3339, req.From)
		to, err2 := time.Parse(time.RFC3339, req.To)
		if err1 != nil || err2 != nil || !to.After(from) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"samples": series(req.Metric, from, to)})
	})

	mux.HandleFunc("/api/v1/metrics/latest", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := metricBase[req.Metric]; !ok {
			writeJSON(w, map[string]any{"sample": nil})
			return
		}
		points := series(req.Metric, time.Now().AddDate(0, 0, -1), time.Now())
		writeJSON(w, map[string]any{"sample": points[len(points)-1]})
	})

	logger := log.New(log.Writer(), "mock-store ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// series fabricates one point per day with a gentle weekly wave around the
// metric's base value. Revenue gets a 3x spike two days before the window end.
func series(metric string, from, to time.Time) []samplePoint {
	base, ok := metricBase[metric]
	if !ok {
		return []samplePoint{}
	}

	points := make([]samplePoint, 0)
	day := 0
	for ts := from; !ts.After(to); ts = ts.AddDate(0, 0, 1) {
		value := base * (1 + 0.1*math.Sin(2*math.Pi*float64(day)/7))
		points = append(points, samplePoint{Timestamp: ts, Value: math.Round(value*100) / 100})
		day++
	}
	if metric == "revenue" && len(points) > 2 {
		points[len(points)-2].Value = math.Round(base*3*100) / 100
	}
	return points
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
