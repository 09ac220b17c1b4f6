// Standalone mock release server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/extupdate watch -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock release server starting on :9999")
	fmt.Println("Each extension publishes a new minor version every 20-60s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		versions = make(map[string]int)
		next     = make(map[string]time.Time)
		mu       sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /releases/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		mu.Lock()
		if due, ok := next[name]; !ok || time.Now().After(due) {
			if ok {
				versions[name]++
				slog.Info("release published", "extension", name, "minor", versions[name])
			}
			next[name] = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
		}
		version := fmt.Sprintf("1.%d.0", versions[name])
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": version})
	})

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
