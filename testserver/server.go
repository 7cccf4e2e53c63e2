// Package testserver provides a small check-in site for exercising replays:
// a cookie login, a session-protected check-in endpoint, redirect chains and
// endpoints that fail on demand.
package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const SessionCookie = "session"

// Server is the check-in test site.
type Server struct {
	mux       *http.ServeMux
	requestID atomic.Int64

	mu       sync.Mutex
	sessions map[string]string // session token -> user
	checkins map[string]int    // user -> successful check-ins
	flaky    map[string]int    // key -> requests seen
}

// NewServer creates a new test server with all endpoints configured.
func NewServer() *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		sessions: make(map[string]string),
		checkins: make(map[string]int),
		flaky:    make(map[string]int),
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// CheckIns returns how many times user has checked in.
func (s *Server) CheckIns(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkins[user]
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/checkin", s.handleCheckin)
	s.mux.HandleFunc("/profile", s.handleProfile)
	s.mux.HandleFunc("/redirect", s.handleRedirect)
	s.mux.HandleFunc("/redirect-loop", s.handleRedirectLoop)
	s.mux.HandleFunc("/redirect-nolocation", s.handleRedirectNoLocation)
	s.mux.HandleFunc("/status/", s.handleStatus)
	s.mux.HandleFunc("/delay/", s.handleDelay)
	s.mux.HandleFunc("/flaky", s.handleFlaky)
	s.mux.HandleFunc("/echo", s.handleEcho)
	s.mux.HandleFunc("/headers", s.handleHeaders)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session returns the user bound to the request's session cookie.
func (s *Server) session(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.sessions[c.Value]
	return user, ok
}

// handleLogin accepts a JSON or form body with a "user" field and starts a
// session.
// Example: POST /auth/login {"user":"alice","password":"x"}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var user string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			User string `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		user = body.User
	} else {
		user = r.FormValue("user")
	}
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "missing user"})
		return
	}

	id := s.requestID.Add(1)
	token := fmt.Sprintf("sess-%d-%d", id, time.Now().UnixNano())
	s.mu.Lock()
	s.sessions[token] = user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "user", Value: user, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "登录成功", "user": user})
}

// handleCheckin records a check-in for the session's user.
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "未登录"})
		return
	}

	s.mu.Lock()
	s.checkins[user]++
	days := s.checkins[user]
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "last_checkin", Value: strconv.Itoa(days), Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "签到成功", "user": user, "days": days})
}

// handleProfile succeeds only with a live session.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "未登录"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "user": user, "method": r.Method})
}

// handleRedirect answers with a chain of relative redirects.
// Example: GET /redirect?n=3&to=/profile redirects three times, then to /profile.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := strconv.Atoi(q.Get("n"))
	if err != nil || n < 1 {
		n = 1
	}
	to := q.Get("to")
	if to == "" {
		to = "/health"
	}
	code, err := strconv.Atoi(q.Get("code"))
	if err != nil || code < 300 || code > 399 {
		code = http.StatusFound
	}

	if c := q.Get("cookie"); c != "" {
		http.SetCookie(w, &http.Cookie{Name: c, Value: strconv.Itoa(n), Path: "/"})
	}

	location := to
	if n > 1 {
		next := q
		next.Set("n", strconv.Itoa(n-1))
		location = "/redirect?" + next.Encode()
	}
	w.Header().Set("Location", location)
	w.WriteHeader(code)
}

func (s *Server) handleRedirectLoop(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", "/redirect-loop")
	w.WriteHeader(http.StatusFound)
}

func (s *Server) handleRedirectNoLocation(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusFound)
}

// handleStatus returns the specified HTTP status code.
// Example: GET /status/404 returns 404 Not Found
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/status/")
	code, err := strconv.Atoi(path)
	if err != nil || code < 200 || code > 599 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
}

// handleDelay waits for the specified duration before responding.
// Example: GET /delay/100 waits 100ms
func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/delay/"))
	if err != nil || ms < 0 {
		http.Error(w, "invalid delay", http.StatusBadRequest)
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-r.Context().Done():
		return
	}
	fmt.Fprintf(w, "delayed %dms", ms)
}

// handleFlaky fails the first `fail` requests for a key with 503, then
// succeeds.
// Example: GET /flaky?key=a&fail=2
func (s *Server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fail, _ := strconv.Atoi(q.Get("fail"))
	key := q.Get("key")

	s.mu.Lock()
	s.flaky[key]++
	seen := s.flaky[key]
	s.mu.Unlock()

	if seen <= fail {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(w, "ok after %d attempts", seen)
}

// handleEcho echoes back the request body with the same content type.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}

// handleHeaders returns the request method, host and headers as JSON.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string)
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"headers": headers,
		"method":  r.Method,
		"host":    r.Host,
		"path":    r.URL.Path,
	})
}
