package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/y1hao/pollphase/pollop"
)

// StartMockWebhook runs a webhook receiver that prints every payload it gets.
// Roughly one request in failEvery is rejected with a 503, which fails the
// poller's tick. A non-positive failEvery never fails.
// Call this in a goroutine before starting the poller.
func StartMockWebhook(addr string, failEvery int) {
	var received atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/ticks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var p pollop.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		// simulate small latency variance
		time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)

		n := received.Add(1)
		if failEvery > 0 && rand.Intn(failEvery) == 0 {
			slog.Warn("mock webhook rejecting request", "request", n)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		slog.Info("mock webhook received", "request", n, "items", strings.Join(p.Items, ", "))
		w.WriteHeader(http.StatusNoContent)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock webhook server error", "error", err)
	}
}
