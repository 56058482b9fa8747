package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"citycal/internal/auth"
	"citycal/internal/config"
	appLog "citycal/internal/log"
	"citycal/internal/refresh"
	"citycal/internal/specials"
	"citycal/internal/temporal"
)

// RecordSource is satisfied by *refresh.Refresher.
type RecordSource interface {
	Snapshot() refresh.Snapshot
}

// Options wires a Server. Nil Clock means time.Now.
type Options struct {
	Config   *config.Config
	Records  RecordSource
	Specials []specials.Special
	Clock    func() time.Time

	// Holidays are configured closures added to the computed city holidays.
	Holidays []specials.Holiday

	// SharePath is the PNG served at /share.png, written by the capture step.
	SharePath string

	Debug bool
}

// Server serves the JSON API, the calendar export and the weekend card.
// Every request evaluates the snapshot against its own "today".
type Server struct {
	cfg      *config.Config
	records  RecordSource
	specials []specials.Special
	holidays []specials.Holiday
	clock    func() time.Time
	loc      *time.Location
	share    string
	debug    bool
	mux      *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		cfg:      cfg,
		records:  opts.Records,
		specials: opts.Specials,
		holidays: opts.Holidays,
		clock:    clock,
		loc:      cfg.Location(),
		share:    opts.SharePath,
		debug:    opts.Debug,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/specials", s.handleSpecials)
	s.mux.HandleFunc("GET /api/holiday-alert", s.handleHolidayAlert)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /weekend", s.handleWeekendCard)
	s.mux.HandleFunc("GET /weekend.pdf", s.handleWeekendFlyer)
	s.mux.HandleFunc("GET /share.png", s.handleShare)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	if ba == nil || ba.Username == "" {
		return false
	}
	return ba.Password != "" || ba.PasswordHash != ""
}

// checkPassword verifies against the Argon2id hash when one is configured.
func (s *Server) checkPassword(p string) bool {
	ba := s.cfg.BasicAuth
	if ba.PasswordHash == "" {
		return secureCompare(p, ba.Password)
	}
	ok, err := auth.VerifyPassword(p, ba.PasswordHash)
	if err != nil {
		appLog.Error("basic auth: bad password_hash", err)
		return false
	}
	return ok
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !s.checkPassword(p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="citycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// today is the request's reference day in the configured zone.
func (s *Server) today() temporal.DateSpec {
	return temporal.DateOf(s.clock().In(s.loc))
}

func (s *Server) snapshot() refresh.Snapshot {
	if s.records == nil {
		return refresh.Snapshot{}
	}
	return s.records.Snapshot()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleShare serves the last captured share card from disk.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if s.share == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.share)
}

// parseIntParam returns def for an empty value and an error for anything
// that is not a non-negative integer.
func parseIntParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
