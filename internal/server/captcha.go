package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/petfeeder/internal/audit/domain"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/smallbiznis/petfeeder/internal/observability/logger"
	"github.com/smallbiznis/petfeeder/internal/observability/tracing"
	"github.com/smallbiznis/petfeeder/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	verifyErrMissingToken = "missing_token"
	verifyErrUnavailable  = "verification_unavailable"
	verifyErrDisabled     = "verification_disabled"
	verifyErrFailed       = "verification_failed"
	verifyErrReplayed     = "token_already_used"
	verifyErrInvalidToken = "invalid_token"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
	outcomeDisabled = "disabled"
	outcomeFallback = "fallback"
	outcomeReplayed = "replayed"
)

// VerifyCaptcha answers POST /api/verify-captcha. The sentinel token is a
// fallback report from a page whose widget never loaded: it is recorded and
// answered unsuccessfully, never verified upstream.
func (s *Server) VerifyCaptcha(c *gin.Context) {
	var req captcha.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, captcha.VerifyResponse{Error: verifyErrMissingToken})
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, captcha.VerifyResponse{Error: verifyErrMissingToken})
		return
	}

	ctx := c.Request.Context()
	log := logger.WithContext(ctx, s.log)

	if token == captcha.SentinelToken {
		s.recordFallback(ctx, c, req)
		c.JSON(http.StatusOK, captcha.VerifyResponse{Error: verifyErrUnavailable})
		return
	}

	if !s.verifier.Enabled() {
		log.Warn("captcha verification requested but no secret is configured")
		s.recordOutcome(ctx, outcomeDisabled)
		c.JSON(http.StatusServiceUnavailable, captcha.VerifyResponse{Error: verifyErrDisabled})
		return
	}

	claim, err := s.replay.Claim(ctx, token)
	switch {
	case errors.Is(err, ratelimit.ErrTokenReplayed):
		s.recordOutcome(ctx, outcomeReplayed)
		s.obsMetrics.RecordCaptchaReplay(ctx)
		s.audit(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionCaptchaReplay,
			TargetType: auditdomain.TargetTypeCaptcha,
			Metadata:   map[string]any{"token": token},
		})
		c.JSON(http.StatusBadRequest, captcha.VerifyResponse{Error: verifyErrReplayed})
		return
	case err != nil:
		log.Warn("captcha replay guard unavailable", zap.Error(err))
	}

	result, err := s.verifier.Verify(ctx, token, c.ClientIP())
	if err != nil {
		log.Warn("captcha siteverify failed", zap.Error(err))
		if relErr := s.replay.Release(ctx, token, claim); relErr != nil {
			log.Warn("captcha replay claim release failed", zap.Error(relErr))
		}
		s.recordOutcome(ctx, outcomeError)
		c.JSON(http.StatusBadGateway, captcha.VerifyResponse{Error: verifyErrFailed})
		return
	}

	if !result.Success {
		reason := verifyErrInvalidToken
		if len(result.ErrorCodes) > 0 {
			reason = result.ErrorCodes[0]
		}
		c.Set(tracing.CaptchaReasonKey, reason)
		s.recordOutcome(ctx, outcomeRejected)
		s.audit(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionCaptchaRejected,
			TargetType: auditdomain.TargetTypeCaptcha,
			Metadata: map[string]any{
				"token":       token,
				"error_codes": result.ErrorCodes,
				"hostname":    result.Hostname,
			},
		})
		c.JSON(http.StatusBadRequest, captcha.VerifyResponse{Error: reason})
		return
	}

	s.recordOutcome(ctx, outcomeSuccess)
	s.audit(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCaptchaVerified,
		TargetType: auditdomain.TargetTypeCaptcha,
		Metadata: map[string]any{
			"hostname": result.Hostname,
			"action":   result.Action,
		},
	})
	c.JSON(http.StatusOK, captcha.VerifyResponse{Success: true})
}

func (s *Server) recordFallback(ctx context.Context, c *gin.Context, req captcha.VerifyRequest) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "unknown"
	}
	c.Set(tracing.CaptchaReasonKey, reason)

	logger.WithContext(ctx, s.log).Warn("captcha fallback reported",
		zap.String("report_id", req.ReportID),
		zap.String("reason", reason),
		zap.String("host", req.Host),
		zap.Int("attempts", req.Attempts),
	)
	s.recordOutcome(ctx, outcomeFallback)
	s.obsMetrics.RecordCaptchaFallback(ctx, reason)
	s.audit(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCaptchaFallback,
		TargetType: auditdomain.TargetTypeCaptcha,
		TargetID:   req.ReportID,
		Metadata: map[string]any{
			"reason":   reason,
			"host":     req.Host,
			"attempts": req.Attempts,
		},
	})
}

func (s *Server) recordOutcome(ctx context.Context, outcome string) {
	s.obsMetrics.RecordCaptchaVerification(ctx, outcome)
}

// audit failures are logged by the audit service and never change the response.
func (s *Server) audit(ctx context.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, entry)
}
