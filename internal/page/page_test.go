package page

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/auth/flow"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type navigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *navigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

type nopPresenter struct{}

func (nopPresenter) SetBusy(string, bool)                       {}
func (nopPresenter) ShowError(string, authdomain.FlowResult)   {}
func (nopPresenter) ShowSuccess(string, authdomain.FlowResult) {}
func (nopPresenter) HideForm(string)                            {}

// readyInjector hands the renderer over synchronously.
type readyInjector struct {
	renderer captcha.WidgetRenderer
}

func (r readyInjector) Inject(_ string, onReady func(captcha.WidgetRenderer), _ func(error)) func() {
	onReady(r.renderer)
	return func() {}
}

func fakeBackend(t *testing.T, captchaTokens *[]string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Security struct {
				CaptchaToken string `json:"captcha_token"`
			} `json:"gotrue_meta_security"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*captchaTokens = append(*captchaTokens, body.Security.CaptchaToken)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "opaque",
			"refresh_token": "r",
			"expires_in":    3600,
			"user":          map[string]any{"id": "u1", "email": body.Email},
		})
	})
	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "u1", "full_name": "Ada"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginPageSignsInWithWidgetToken(t *testing.T) {
	var tokens []string
	srv := fakeBackend(t, &tokens)
	nav := &navigator{}
	doc := captcha.NewMemoryDocument(flow.FormLogin)

	var seen []*authdomain.Principal
	pc, err := Open(context.Background(), Config{
		BackendURL: srv.URL,
		AnonKey:    "anon",
		Location:   "https://feeder.example.com/login?redirect=%2Fpets",
	}, Platform{
		Navigator:   nav,
		Presenter:   nopPresenter{},
		Document:    doc,
		Injector:    readyInjector{renderer: &captcha.TokenRenderer{Token: "widget-token"}},
		Factory:     &backend.Factory{},
		OnPrincipal: func(p *authdomain.Principal) { seen = append(seen, p) },
	}, nil)
	require.NoError(t, err)
	defer pc.Close()

	require.NotNil(t, pc.Captcha)
	assert.Equal(t, captcha.StatusReady, pc.Captcha.Status())
	assert.False(t, pc.Redirected)
	assert.Equal(t, "/pets", pc.RedirectParam())

	res := pc.Flows.SignIn(context.Background(), flow.SignInInput{
		Email:    "ada@example.com",
		Password: "Secret123!",
		Redirect: pc.RedirectParam(),
	})

	require.True(t, res.OK, res.Message)
	assert.Equal(t, []string{"widget-token"}, tokens)
	assert.Equal(t, []string{"/pets"}, nav.targets)
	require.NotNil(t, pc.Session.Current())
	assert.Equal(t, "Ada", pc.Session.Current().DisplayName)
	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	assert.Equal(t, "u1", seen[1].ID)
}

func TestProtectedPageRedirectsAnonymousVisitor(t *testing.T) {
	var tokens []string
	srv := fakeBackend(t, &tokens)
	nav := &navigator{}

	pc, err := Open(context.Background(), Config{
		BackendURL: srv.URL,
		AnonKey:    "anon",
		Location:   "/dashboard",
	}, Platform{Navigator: nav, Presenter: nopPresenter{}, Factory: &backend.Factory{}}, nil)
	require.NoError(t, err)
	defer pc.Close()

	assert.True(t, pc.Redirected)
	assert.Equal(t, []string{"/login?redirect=%2Fdashboard"}, nav.targets)
	assert.Nil(t, pc.Captcha)
}

func TestOpenWithoutBackendConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Location: "/login"}, Platform{Factory: &backend.Factory{}}, nil)
	assert.ErrorIs(t, err, backend.ErrConfig)
}

func TestCloseEmptiesFactorySlot(t *testing.T) {
	var tokens []string
	srv := fakeBackend(t, &tokens)
	factory := &backend.Factory{}
	cfg := Config{BackendURL: srv.URL, AnonKey: "anon", Location: "/"}
	platform := Platform{Navigator: &navigator{}, Presenter: nopPresenter{}, Factory: factory}

	first, err := Open(context.Background(), cfg, platform, nil)
	require.NoError(t, err)
	again, err := factory.Get(backend.Config{URL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	assert.Same(t, first.Client, again)

	first.Close()
	second, err := Open(context.Background(), cfg, platform, nil)
	require.NoError(t, err)
	defer second.Close()
	assert.NotSame(t, first.Client, second.Client)
}

func TestIsAuthPage(t *testing.T) {
	for _, p := range []string{"/login", "/login.html", "/signup", "/reset-password.html", "/forgot-password"} {
		assert.True(t, IsAuthPage(p), p)
	}
	for _, p := range []string{"/", "/dashboard", "/loginx"} {
		assert.False(t, IsAuthPage(p), p)
	}
}
