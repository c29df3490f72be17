package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/approvald/internal/approvals/service"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/logging"
)

type Dependencies struct {
	Logger    *slog.Logger
	Addr      string
	Lifecycle *service.LifecycleService
	Directory *service.DirectoryService
	Sessions  *Sessions
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	lifecycle  *service.LifecycleService
	directory  *service.DirectoryService
	sessions   *Sessions
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:    d.Logger,
		mux:       mux,
		lifecycle: d.Lifecycle,
		directory: d.Directory,
		sessions:  d.Sessions,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/bootstrap", s.handleBootstrap)
	mux.HandleFunc("POST /v1/session", s.handleLogin)
	mux.HandleFunc("POST /v1/registrations", s.handleRegister)
	mux.HandleFunc("GET /v1/registrations", s.authed(s.handleListPending))
	mux.HandleFunc("POST /v1/registrations/{username}/approve", s.authed(s.handleApproveRegistration))
	mux.HandleFunc("POST /v1/registrations/{username}/reject", s.authed(s.handleRejectRegistration))
	mux.HandleFunc("GET /v1/users", s.authed(s.handleListUsers))
	mux.HandleFunc("PUT /v1/users/{username}/role", s.authed(s.handleChangeRole))

	mux.HandleFunc("GET /v1/request-types", s.handleRequestTypes)
	mux.HandleFunc("POST /v1/requests", s.authed(s.handleCreate))
	mux.HandleFunc("GET /v1/requests", s.authed(s.handleListRequests))
	mux.HandleFunc("GET /v1/requests/{id}", s.authed(s.handleGet))
	mux.HandleFunc("POST /v1/requests/{id}/transition", s.authed(s.handleTransition))
	mux.HandleFunc("POST /v1/requests/{id}/resubmit", s.authed(s.handleResubmit))
	mux.HandleFunc("DELETE /v1/requests/{id}", s.authed(s.handleDelete))
	mux.HandleFunc("GET /v1/requests/{id}/history", s.authed(s.handleHistory))
	mux.HandleFunc("GET /v1/deleted-requests", s.authed(s.handleListDeleted))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, actor types.Actor)

// authed resolves the session token into an actor. Only the username is
// trusted from the token.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		username, err := s.sessions.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		r = r.WithContext(logging.WithActor(r.Context(), username))
		h(w, r, types.Actor{Username: username})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) badJSON(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "bad_json", "invalid request body")
}
