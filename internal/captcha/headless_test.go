package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessLoaderUsesPreIssuedToken(t *testing.T) {
	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("/* widget */"))
	}))
	defer script.Close()

	doc := NewMemoryDocument("login-form")
	loader := NewLoader(doc, &HTTPScriptInjector{Renderer: &TokenRenderer{Token: "issued"}}, Options{
		ScriptURL: script.URL,
		Host:      "localhost",
	})
	loader.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := loader.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, status)

	token, ok := loader.Check("login-form")
	assert.True(t, ok)
	assert.Equal(t, "issued", token)
}

func TestHeadlessLoaderWithoutTokenFallsBackAndReports(t *testing.T) {
	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("/* widget */"))
	}))
	defer script.Close()

	var reported atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, VerifyPath, r.URL.Path)
		var body VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reported.Store(body)
		_ = json.NewEncoder(w).Encode(VerifyResponse{Error: "verification_unavailable"})
	}))
	defer api.Close()

	doc := NewMemoryDocument("login-form", "signup-form")
	loader := NewLoader(doc, &HTTPScriptInjector{Renderer: &TokenRenderer{}}, Options{
		ScriptURL: script.URL,
		Host:      "feeder.example.com",
		Reporter:  NewHTTPReporter(api.URL+"/", nil),
	})
	loader.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := loader.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFallback, status)
	assert.Equal(t, "widget_error_unsupported_environment", loader.FallbackReason())
	assert.Equal(t, SentinelToken, doc.Token(ContainerID("signup-form")))

	loader.WaitReports()
	body, ok := reported.Load().(VerifyRequest)
	require.True(t, ok)
	assert.Equal(t, SentinelToken, body.Token)
	assert.Equal(t, "feeder.example.com", body.Host)
	assert.NotEmpty(t, body.ReportID)
}

func TestHTTPScriptInjectorReportsBadStatus(t *testing.T) {
	script := httptest.NewServer(http.NotFoundHandler())
	defer script.Close()

	errs := make(chan error, 1)
	injector := &HTTPScriptInjector{}
	injector.Inject(script.URL, func(WidgetRenderer) { t.Error("unexpected ready") }, func(err error) { errs <- err })

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrLoadFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestHTTPReporterSurfacesRejection(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer api.Close()

	err := NewHTTPReporter(api.URL, nil).Report(context.Background(), FallbackReport{ID: "r1"})
	assert.Error(t, err)
}
