package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
	"github.com/kjstillabower/project-tracker-service/internal/traffic"
)

// testServer bundles a router over a temporary data root with the default accounts.
type testServer struct {
	router   *mux.Router
	handler  *Handler
	svc      *service.Service
	sessions *session.InMemoryStore
	outcomes *traffic.Tracker
	dataDir  string
	baseDir  string
}

func newTestServer(t *testing.T, mutate func(*Options, *RouterOptions)) *testServer {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "static", "data")
	pagesDir := filepath.Join(root, "templates")
	for _, d := range []string{dataDir, pagesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	for _, p := range []string{"index.html", "login.html", "dashboard.html", "admin.html"} {
		if err := os.WriteFile(filepath.Join(pagesDir, p), []byte("<html>"+p+"</html>"), 0o644); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}

	logger := zap.NewNop()
	outcomes := traffic.New(time.Minute)
	fs := store.NewFS(dataDir, logger, outcomes)
	svc := service.New(fs, "", logger)
	if _, err := svc.FactoryReset(context.Background()); err != nil {
		t.Fatalf("FactoryReset() error = %v", err)
	}
	tool, err := structure.New(structure.Options{BaseDir: root, Logger: logger})
	if err != nil {
		t.Fatalf("structure.New() error = %v", err)
	}
	sessions := session.NewInMemoryStore()

	opts := Options{
		CookieName:       "session_id",
		SessionTTL:       time.Hour,
		PagesDir:         pagesDir,
		StaticDir:        filepath.Join(root, "static"),
		DataDir:          dataDir,
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 50,
	}
	ro := RouterOptions{RequestTimeout: 5 * time.Second}
	if mutate != nil {
		mutate(&opts, &ro)
	}
	h := NewHandler(svc, sessions, tool, outcomes, logger, opts)
	return &testServer{
		router:   NewRouter(h, ro),
		handler:  h,
		svc:      svc,
		sessions: sessions,
		outcomes: outcomes,
		dataDir:  dataDir,
		baseDir:  root,
	}
}

// do sends a request with an optional JSON body and session cookie.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// login authenticates with JSON credentials and returns the session cookie.
func (ts *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	w := ts.do(t, "POST", "/login", map[string]string{"username": username, "password": password}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s status = %d, body = %s", username, w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

// guest starts a guest session and returns its cookie.
func (ts *testServer) guest(t *testing.T) *http.Cookie {
	t.Helper()
	w := ts.do(t, "POST", "/api/guest", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("guest status = %d, body = %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			return c
		}
	}
	t.Fatal("response did not set a session cookie")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// errorCode extracts error.code from a standard error body.
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	decode(t, w, &body)
	return body.Error.Code
}

func userID(t *testing.T, ts *testServer, username string) string {
	t.Helper()
	users, err := ts.svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u.ID
		}
	}
	t.Fatalf("user %s not found", username)
	return ""
}
