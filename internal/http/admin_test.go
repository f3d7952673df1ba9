package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
)

// TestAdmin_RequiresAdmin verifies that admin routes reject anonymous and non-admin sessions.
func TestAdmin_RequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	if w := ts.do(t, "GET", "/api/admin/users", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
	w := ts.do(t, "GET", "/api/admin/users", nil, ts.login(t, "testuser", "test"))
	if w.Code != http.StatusForbidden || errorCode(t, w) != "FORBIDDEN" {
		t.Errorf("non-admin status = %d, want 403 FORBIDDEN", w.Code)
	}
}

// TestAdmin_Users verifies listing, updating, resetting passwords and deleting accounts.
func TestAdmin_Users(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")

	w := ts.do(t, "GET", "/api/admin/users", nil, admin)
	var users []models.UserView
	decode(t, w, &users)
	if len(users) != 2 || users[0].Username != "admin" || users[1].Username != "testuser" {
		t.Fatalf("users = %+v", users)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("user listing must not contain passwords")
	}

	testID := userID(t, ts, "testuser")
	w = ts.do(t, "PUT", "/api/admin/user/"+testID, map[string]interface{}{"reset_password": true}, admin)
	var reset struct {
		Success     bool   `json:"success"`
		NewPassword string `json:"new_password"`
	}
	decode(t, w, &reset)
	if !reset.Success || len(reset.NewPassword) != 12 {
		t.Fatalf("reset = %+v, want a 12-character password", reset)
	}
	ts.login(t, "testuser", reset.NewPassword)

	w = ts.do(t, "PUT", "/api/admin/user/"+testID, map[string]interface{}{"username": "admin"}, admin)
	if w.Code != http.StatusConflict {
		t.Errorf("rename onto existing status = %d, want 409", w.Code)
	}

	adminID := userID(t, ts, "admin")
	w = ts.do(t, "PUT", "/api/admin/user/"+adminID, map[string]interface{}{"isAdmin": false}, admin)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "SELF_DEMOTE" {
		t.Errorf("self demote status = %d, want 400 SELF_DEMOTE", w.Code)
	}
	w = ts.do(t, "DELETE", "/api/admin/user/"+adminID, nil, admin)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "SELF_DELETE" {
		t.Errorf("self delete status = %d, want 400 SELF_DELETE", w.Code)
	}

	w = ts.do(t, "DELETE", "/api/admin/user/"+testID, nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(ts.dataDir, "user_data", testID)); !os.IsNotExist(err) {
		t.Error("deleted user's data directory should be removed")
	}
	w = ts.do(t, "DELETE", "/api/admin/user/"+testID, nil, admin)
	if w.Code != http.StatusNotFound || errorCode(t, w) != "USER_NOT_FOUND" {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

// TestSessionMiddleware_DeletedUserLosesSession verifies sessions are dropped once the account is gone.
func TestSessionMiddleware_DeletedUserLosesSession(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")
	user := ts.login(t, "testuser", "test")

	ts.do(t, "DELETE", "/api/admin/user/"+userID(t, ts, "testuser"), nil, admin)

	if w := ts.do(t, "GET", "/api/projects", nil, user); w.Code != http.StatusUnauthorized {
		t.Errorf("status after account deletion = %d, want 401", w.Code)
	}
}

// TestSessionMiddleware_RenameKeepsSession verifies that renamed accounts, the acting
// admin included, stay logged in under their new username.
func TestSessionMiddleware_RenameKeepsSession(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")
	user := ts.login(t, "testuser", "test")

	w := ts.do(t, "PUT", "/api/admin/user/"+userID(t, ts, "admin"), map[string]interface{}{"username": "root"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("self rename status = %d, body = %s", w.Code, w.Body.String())
	}
	w = ts.do(t, "PUT", "/api/admin/user/"+userID(t, ts, "testuser"), map[string]interface{}{"username": "tester"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body = %s", w.Code, w.Body.String())
	}

	w = ts.do(t, "GET", "/api/session", nil, admin)
	if !strings.Contains(w.Body.String(), `"username":"root"`) || !strings.Contains(w.Body.String(), `"is_admin":true`) {
		t.Errorf("admin session = %s, want root as admin", w.Body.String())
	}
	w = ts.do(t, "GET", "/api/session", nil, user)
	if !strings.Contains(w.Body.String(), `"username":"tester"`) {
		t.Errorf("user session = %s, want tester", w.Body.String())
	}
	if w := ts.do(t, "GET", "/api/projects", nil, user); w.Code != http.StatusOK {
		t.Errorf("projects after rename status = %d, want 200", w.Code)
	}
}

// TestSessionMiddleware_AdminRightsFollowStore verifies that promotion takes effect without a new login.
func TestSessionMiddleware_AdminRightsFollowStore(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")
	user := ts.login(t, "testuser", "test")

	ts.do(t, "PUT", "/api/admin/user/"+userID(t, ts, "testuser"), map[string]interface{}{"isAdmin": true}, admin)

	if w := ts.do(t, "GET", "/api/admin/users", nil, user); w.Code != http.StatusOK {
		t.Errorf("promoted user status = %d, want 200", w.Code)
	}
}

// TestAdmin_GlobalSettings verifies partial updates and negative-limit rejection.
func TestAdmin_GlobalSettings(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")

	w := ts.do(t, "POST", "/api/admin/global-settings", `{"guest_limits":{"projects":-1}}`, admin)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", w.Code)
	}

	w = ts.do(t, "POST", "/api/admin/global-settings", `{"registration_enabled":false}`, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	w = ts.do(t, "GET", "/api/admin/global-settings", nil, admin)
	var gs models.GlobalSettings
	decode(t, w, &gs)
	if gs.RegistrationEnabled || gs.GuestLimits.PhasesPerProject != 3 {
		t.Errorf("settings = %+v, want registration off and limits kept", gs)
	}
}

// TestMaintenance_BlocksNonAdmin verifies that maintenance mode answers 503 to users but not admins.
func TestMaintenance_BlocksNonAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")
	user := ts.login(t, "testuser", "test")

	ts.do(t, "POST", "/api/admin/global-settings", `{"maintenance_mode":true}`, admin)

	w := ts.do(t, "GET", "/api/projects", nil, user)
	if w.Code != http.StatusServiceUnavailable || errorCode(t, w) != "MAINTENANCE" {
		t.Errorf("user status = %d, want 503 MAINTENANCE", w.Code)
	}
	if w := ts.do(t, "GET", "/api/session", nil, user); w.Code != http.StatusOK {
		t.Errorf("/api/session status = %d, want 200 during maintenance", w.Code)
	}
	if w := ts.do(t, "GET", "/api/projects", nil, admin); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
	w = ts.do(t, "POST", "/login", map[string]string{"username": "testuser", "password": "test"}, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("non-admin login status = %d, want 503", w.Code)
	}
	ts.login(t, "admin", "password123")
}

// TestAdmin_StructureRuns verifies generate, check, fix, backups, restore and report through the API.
func TestAdmin_StructureRuns(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")

	w := ts.do(t, "POST", "/api/admin/run-check", map[string]string{"flag": "--check"}, admin)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"log"`) {
		t.Errorf("check without manifest = %d %s, want 404 with log", w.Code, w.Body.String())
	}

	w = ts.do(t, "POST", "/api/admin/run-check", map[string]string{"flag": "--generate"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body = %s", w.Code, w.Body.String())
	}
	var run struct {
		Log string `json:"log"`
	}
	decode(t, w, &run)
	if run.Log == "" {
		t.Error("generate log should be non-empty text")
	}

	w = ts.do(t, "GET", "/api/admin/get-structure", nil, admin)
	var root structure.Node
	decode(t, w, &root)
	if w.Code != http.StatusOK || root.Type != structure.TypeRoot {
		t.Errorf("get-structure = %d %+v, want the manifest root node", w.Code, root)
	}

	orphan := filepath.Join(ts.baseDir, "stray.txt")
	if err := os.WriteFile(orphan, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = ts.do(t, "POST", "/api/admin/run-check", map[string]string{"flag": "--check"}, admin)
	if !strings.Contains(w.Body.String(), "stray.txt") {
		t.Errorf("check should report the orphan: %s", w.Body.String())
	}

	w = ts.do(t, "POST", "/api/admin/run-check", map[string]string{"flag": "--fix"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("fix status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("fix should remove the orphan")
	}

	w = ts.do(t, "GET", "/api/admin/backups", nil, admin)
	var backups []string
	decode(t, w, &backups)
	if len(backups) == 0 {
		t.Fatal("fix should create a backup session")
	}
	latest := backups[len(backups)-1]

	w = ts.do(t, "GET", "/api/admin/backups/"+latest, nil, admin)
	if !strings.Contains(w.Body.String(), "stray.txt") {
		t.Errorf("backup files = %s, want stray.txt", w.Body.String())
	}

	w = ts.do(t, "POST", "/api/admin/restore", map[string]string{"backup": latest, "files": "all"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Errorf("restore should bring back stray.txt: %v", err)
	}

	w = ts.do(t, "POST", "/api/admin/restore", map[string]string{"backup": "nope", "files": "all"}, admin)
	if w.Code != http.StatusNotFound || errorCode(t, w) != "BACKUP_NOT_FOUND" {
		t.Errorf("unknown backup status = %d", w.Code)
	}

	w = ts.do(t, "GET", "/api/admin/structure-report", nil, admin)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"text"`) {
		t.Errorf("report = %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, "POST", "/api/admin/run-check", map[string]string{"flag": "--delete-everything"}, admin)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_FLAG" {
		t.Errorf("unknown flag status = %d", w.Code)
	}
}

// TestAdmin_FactoryReset verifies the reset log and that the caller's old account is gone.
func TestAdmin_FactoryReset(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.login(t, "admin", "password123")
	oldID := userID(t, ts, "admin")

	w := ts.do(t, "POST", "/api/admin/run-factory-reset", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Log []string `json:"log"`
	}
	decode(t, w, &body)
	if len(body.Log) == 0 || body.Log[len(body.Log)-1] != "Factory reset complete" {
		t.Errorf("log = %v", body.Log)
	}
	if userID(t, ts, "admin") == oldID {
		t.Error("factory reset should recreate the admin with a new ID")
	}
	if w := ts.do(t, "GET", "/api/admin/users", nil, admin); w.Code != http.StatusUnauthorized {
		t.Errorf("old admin session status = %d, want 401", w.Code)
	}
	if len(service.DefaultAccounts) != 2 {
		t.Errorf("default accounts = %d", len(service.DefaultAccounts))
	}
}

// TestPages verifies redirects for protected pages and that data files are never served.
func TestPages(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, "GET", "/dashboard", nil, nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("anonymous dashboard = %d %q", w.Code, w.Header().Get("Location"))
	}
	user := ts.login(t, "testuser", "test")
	if w := ts.do(t, "GET", "/dashboard", nil, user); w.Code != http.StatusOK {
		t.Errorf("user dashboard status = %d", w.Code)
	}
	w = ts.do(t, "GET", "/admin", nil, user)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("non-admin admin page = %d %q", w.Code, w.Header().Get("Location"))
	}
	w = ts.do(t, "GET", "/login", nil, user)
	if w.Code != http.StatusSeeOther {
		t.Errorf("login page for logged-in user = %d, want redirect", w.Code)
	}
	if w := ts.do(t, "GET", "/dashboard", nil, ts.guest(t)); w.Code != http.StatusOK {
		t.Errorf("guest dashboard status = %d", w.Code)
	}

	if w := ts.do(t, "GET", "/static/data/users.json", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("users.json status = %d, want 404", w.Code)
	}
	if w := ts.do(t, "GET", "/static/x/../data/users.json", nil, nil); w.Code == http.StatusOK {
		t.Error("users.json must not be reachable through dot segments")
	}
}

func TestHiddenPrefix(t *testing.T) {
	tests := []struct {
		static, data, want string
	}{
		{"static", "static/data", "data"},
		{"static", "data", ""},
		{"static", "static", "."},
		{"", "static/data", ""},
	}
	for _, tt := range tests {
		if got := hiddenPrefix(tt.static, tt.data); got != tt.want {
			t.Errorf("hiddenPrefix(%q, %q) = %q, want %q", tt.static, tt.data, got, tt.want)
		}
	}
}
