package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierSubmitsFormAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))

		ok := r.PostForm.Get("response") == "good"
		res := map[string]any{"success": ok, "hostname": "feeder.example.com"}
		if !ok {
			res["error-codes"] = []string{"invalid-input-response"}
		}
		_ = json.NewEncoder(w).Encode(res)
	}))
	defer srv.Close()

	v := NewVerifier("secret", srv.URL, srv.Client())

	res, err := v.Verify(context.Background(), "good", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "feeder.example.com", res.Hostname)

	res, err = v.Verify(context.Background(), "bad", "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"invalid-input-response"}, res.ErrorCodes)
}

func TestVerifierWithoutSecret(t *testing.T) {
	v := NewVerifier("", "", nil)
	assert.False(t, v.Enabled())

	_, err := v.Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrVerifierDisabled)
}

func TestVerifierRejectsEmptyToken(t *testing.T) {
	v := NewVerifier("secret", "http://127.0.0.1:1", nil)
	_, err := v.Verify(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestVerifierUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewVerifier("secret", srv.URL, nil).Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}
