package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu            sync.Mutex
	captchaTokens []string
	loggedOut     bool
}

func (f *fakeBackend) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Security struct {
				CaptchaToken string `json:"captcha_token"`
			} `json:"gotrue_meta_security"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.captchaTokens = append(f.captchaTokens, body.Security.CaptchaToken)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "opaque",
			"refresh_token": "r",
			"expires_in":    3600,
			"user":          map[string]any{"id": "u1", "email": body.Email},
		})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.loggedOut = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "u1", "full_name": "Ada"}})
	})
	mux.HandleFunc("/rest/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer opaque", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "d1", "name": "Kitchen"},
			{"id": "d2", "name": "Porch"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func scriptServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("/* widget */"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, bool, error) {
	t.Helper()
	var out bytes.Buffer
	printed, err := Execute(args, strings.NewReader(stdin), &out)
	return out.String(), printed, err
}

func TestLoginStoresSessionAndWhoamiReadsIt(t *testing.T) {
	fb := &fakeBackend{}
	srv := fb.server(t)
	t.Setenv("FEEDERCTL_CAPTCHA_SCRIPT_URL", scriptServer(t).URL)
	dir := t.TempDir()
	common := []string{"--backend-url", srv.URL, "--anon-key", "anon", "--state-dir", dir, "--captcha-token", "widget-token"}

	_, _, err := run(t, "Secret123!\n", append([]string{"login", "--email", "ada@example.com"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"widget-token"}, fb.captchaTokens)

	stored, err := NewFileStore(filepath.Join(dir, stateFileName)).Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "opaque", stored.AccessToken)

	out, _, err := run(t, "", append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	var principal authdomain.Principal
	require.NoError(t, json.Unmarshal([]byte(out), &principal))
	assert.Equal(t, "u1", principal.ID)
	assert.Equal(t, "Ada", principal.DisplayName)

	out, _, err = run(t, "", append([]string{"devices"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, `"Kitchen"`)

	_, _, err = run(t, "", append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.True(t, fb.loggedOut)

	_, _, err = run(t, "", append([]string{"whoami"}, common...)...)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestLoginFallsBackWhenNoTokenAvailable(t *testing.T) {
	fb := &fakeBackend{}
	srv := fb.server(t)
	script := scriptServer(t)
	t.Setenv("FEEDERCTL_CAPTCHA_SCRIPT_URL", script.URL)

	_, _, err := run(t, "",
		"login", "--email", "ada@example.com", "--password", "Secret123!", "--site-url", script.URL,
		"--backend-url", srv.URL, "--anon-key", "anon", "--state-dir", t.TempDir(),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{captcha.SentinelToken}, fb.captchaTokens)
}

func TestSignupValidationErrorIsPrinted(t *testing.T) {
	fb := &fakeBackend{}
	srv := fb.server(t)
	t.Setenv("FEEDERCTL_CAPTCHA_SCRIPT_URL", scriptServer(t).URL)

	out, printed, err := run(t, "",
		"signup", "--email", "not-an-email", "--password", "Secret123!", "--confirm-password", "Secret123!",
		"--accept-terms", "--captcha-timeout", "2s",
		"--backend-url", srv.URL, "--anon-key", "anon", "--state-dir", t.TempDir(),
	)
	require.Error(t, err)
	assert.True(t, printed)
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "(email)")
	assert.Empty(t, fb.captchaTokens)
}

func TestDevicesRequiresSession(t *testing.T) {
	srv := (&fakeBackend{}).server(t)
	_, printed, err := run(t, "", "devices", "--backend-url", srv.URL, "--anon-key", "anon", "--state-dir", t.TempDir())
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.False(t, printed)
}

func TestMissingBackendConfig(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	_, _, err := run(t, "", "whoami", "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend is not configured")
}

func TestOAuthPrintsConsentURLAndKeepsVerifier(t *testing.T) {
	srv := (&fakeBackend{}).server(t)
	dir := t.TempDir()

	out, _, err := run(t, "", "oauth", "--provider", "google",
		"--backend-url", srv.URL, "--anon-key", "anon", "--state-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL+"/auth/v1/authorize?")

	store := NewFileStore(filepath.Join(dir, stateFileName))
	verifier, ok, err := store.TakeVerifier("google")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, verifier)

	_, ok, err = store.TakeVerifier("google")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", stateFileName)
	store := NewFileStore(path)

	s, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, store.SaveVerifier("github", "v1"))
	require.NoError(t, store.Save(&backend.Session{
		AccessToken: "a",
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	s, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a", s.AccessToken)

	require.NoError(t, store.Clear())
	s, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, s)

	verifier, ok, err := store.TakeVerifier("github")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", verifier)
}

func TestReadLineStopsAtNewline(t *testing.T) {
	in := strings.NewReader("first\r\nsecond\n")
	first, err := readLine(in)
	require.NoError(t, err)
	second, err := readLine(in)
	require.NoError(t, err)
	third, err := readLine(in)
	require.NoError(t, err)

	assert.Equal(t, "first", first)
	assert.Equal(t, "second", second)
	assert.Empty(t, third)
}

func TestLoadConfigReadsDashboardEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("FEEDERCTL_SITE_URL", "https://feeder.example.com/")
	t.Setenv("FEEDERCTL_STATE_DIR", t.TempDir())

	cfg, err := LoadConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", cfg.BackendURL)
	assert.Equal(t, "anon", cfg.AnonKey)
	assert.Equal(t, "https://feeder.example.com", cfg.SiteURL)
	assert.Equal(t, defaultCaptchaTimeout, cfg.CaptchaTimeout)
}
