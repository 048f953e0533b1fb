package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"backend_configured": s.cfg.Backend.Configured(),
		"uptime_seconds":     int64(s.now().Sub(s.startedAt).Seconds()),
	})
}

type publicConfigResponse struct {
	SupabaseURL     string `json:"supabaseUrl"`
	SupabaseAnonKey string `json:"supabaseAnonKey"`
	CaptchaSiteKey  string `json:"captchaSiteKey"`
}

// PublicConfig hands the browser pages the backend coordinates and the
// captcha site key for the host they were loaded from.
func (s *Server) PublicConfig(c *gin.Context) {
	if !s.cfg.Backend.Configured() {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	var siteKey string
	if s.sites != nil {
		siteKey = s.sites.SiteKey(requestHost(c))
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, publicConfigResponse{
		SupabaseURL:     s.cfg.Backend.URL,
		SupabaseAnonKey: s.cfg.Backend.AnonKey,
		CaptchaSiteKey:  siteKey,
	})
}

func requestHost(c *gin.Context) string {
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-Host")); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}
	return c.Request.Host
}
