package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(recorder),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.POST("/api/verify-captcha", func(c *gin.Context) {
		c.Set(CaptchaReasonKey, "token_already_used")
		c.Status(http.StatusBadRequest)
	})
	engine.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})
	engine.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/verify-captcha", nil),
		httptest.NewRequest(http.MethodGet, "/boom", nil),
		httptest.NewRequest(http.MethodGet, "/dashboard", nil),
	} {
		engine.ServeHTTP(httptest.NewRecorder(), r)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	verify := spans[0]
	assert.Equal(t, "POST /api/verify-captcha", verify.Name())
	assert.Contains(t, verify.Attributes(), attribute.String("captcha.outcome", "token_already_used"))
	assert.Contains(t, verify.Attributes(), attribute.Int("http.status_code", http.StatusBadRequest))
	assert.Equal(t, codes.Unset, verify.Status().Code)

	assert.Equal(t, "GET /boom", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	assert.Equal(t, "GET static", spans[2].Name())
}
