package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockRelease tracks the published version and next release time for one extension.
type mockRelease struct {
	minor       int
	nextRelease time.Time
}

// StartMockReleaseServer serves release manifests at /releases/{name}.
// Every extension publishes a new minor version every 20-60 seconds.
// Call this in a goroutine before starting the Monitor.
func StartMockReleaseServer(addr string) {
	var (
		releases = make(map[string]*mockRelease)
		mu       sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /releases/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		rel, exists := releases[name]
		if !exists {
			rel = &mockRelease{nextRelease: nextReleaseTime()}
			releases[name] = rel
		}
		if time.Now().After(rel.nextRelease) {
			rel.minor++
			rel.nextRelease = nextReleaseTime()
			slog.Info("release published", "extension", name, "version", fmt.Sprintf("1.%d.0", rel.minor))
		}
		version := fmt.Sprintf("1.%d.0", rel.minor)
		mu.Unlock()

		if strings.HasSuffix(name, ".txt") {
			_, _ = w.Write([]byte(version + "\n"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":    name,
			"version": version,
		})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock release server failed", "error", err)
	}
}

// nextReleaseTime returns a time 20-60 seconds from now.
func nextReleaseTime() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}
