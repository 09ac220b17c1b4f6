package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jpalmerr/extupdate/internal/store"
	"github.com/jpalmerr/extupdate/status"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
// Must be <= shutdown timeout to ensure clean shutdown.
const sseWriteTimeout = 5 * time.Second

// Errors an [UpdateFunc] wraps to select the HTTP response code.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrNotImplemented = errors.New("not implemented")
)

// UpdateFunc installs the available update for the named extension.
//
// It must wrap [ErrNotFound], [ErrConflict] or [ErrNotImplemented] when the
// request itself is at fault; any other error is reported as 500.
type UpdateFunc func(ctx context.Context, name string) error

// AckFunc acknowledges the named extension's current state. It reports
// whether the extension has a recorded status, acknowledged before or not.
type AckFunc func(name string) (found bool)

// ForgetFunc removes the named extension's status and reports whether
// there was one.
type ForgetFunc func(name string) bool

// Actions are the state-changing operations behind the API routes.
//
// A nil Ack or Forget acts on the store directly. A nil Update makes the
// update route answer 501.
type Actions struct {
	Ack    AckFunc
	Forget ForgetFunc
	Update UpdateFunc
}

// Server handles HTTP requests for the extension status API.
type Server struct {
	store      store.Store
	port       int
	actions    Actions
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the status snapshot
//   - port: TCP port to listen on
//   - actions: Operations run for ack, update and delete requests
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, actions Actions, logger *slog.Logger) *Server {
	if actions.Ack == nil {
		actions.Ack = func(name string) bool {
			st.Dispatch(status.SetAcknowledged{Name: name, Acknowledged: true})
			_, ok := st.Current().Get(name)
			return ok
		}
	}
	if actions.Forget == nil {
		actions.Forget = st.Forget
	}
	return &Server{
		store:   st,
		port:    port,
		actions: actions,
		logger:  logger,
	}
}

// Handler returns the request router. Exposed for tests and for embedding
// the API in another server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/extensions", s.handleList)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("POST /api/extensions/{name}/ack", s.handleAck)
	mux.HandleFunc("POST /api/extensions/{name}/update", s.handleUpdate)
	mux.HandleFunc("DELETE /api/extensions/{name}", s.handleForget)
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server shuts down gracefully when ctx is cancelled.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// request contexts derive from ctx so long-running SSE handlers
		// stop on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleList returns every tracked extension as JSON, sorted by name.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries := s.store.Current().Entries()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.logger.Error("failed to encode extensions response", "error", err)
	}
}

// handleAck marks the extension's current state as shown to the user.
func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if !s.actions.Ack(name) {
		http.Error(w, "extension not found", http.StatusNotFound)
		return
	}
	s.logger.Debug("status acknowledged", "extension", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdate runs the configured update function for the extension.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if s.actions.Update == nil {
		http.Error(w, "updates are not configured", http.StatusNotImplemented)
		return
	}

	err := s.actions.Update(r.Context(), name)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNotImplemented):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		s.logger.Warn("update failed", "extension", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleForget stops tracking the extension.
func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if !s.actions.Forget(name) {
		http.Error(w, "extension not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSSE streams status changes via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// write deadlines may not be supported by every ResponseWriter
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the snapshot so no change falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, e := range s.store.Current().Entries() {
		data, err := json.Marshal(store.Change{Name: e.Name, State: e.State, Acknowledged: e.Acknowledged})
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}
