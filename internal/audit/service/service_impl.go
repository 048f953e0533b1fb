package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/petfeeder/internal/audit/domain"
	"github.com/smallbiznis/petfeeder/internal/audit/masking"
	obscontext "github.com/smallbiznis/petfeeder/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	now   func() time.Time
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		now:   time.Now,
	}
}

// Record writes one audit row. Without a repository the entry is logged and
// the call succeeds, so audit never blocks the request that triggered it.
func (s *Service) Record(ctx context.Context, in auditdomain.Entry) error {
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType := in.ActorType
	if actorType == "" {
		actorType = auditdomain.ActorTypeVisitor
	}
	targetType := strings.TrimSpace(in.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range in.Metadata {
		if key == "" {
			continue
		}
		if isSecretKey(key) {
			if str, ok := value.(string); ok {
				value = masking.MaskSecret(str)
			}
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(actorType),
		Action:     action,
		TargetType: targetType,
		TargetID:   normalize(in.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  normalize(obscontext.ClientIPFromContext(ctx)),
		UserAgent:  normalize(obscontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.now().UTC(),
	}

	if s.repo == nil {
		s.log.Info("audit",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.Stringp("target_id", entry.TargetID),
			zap.Any("metadata", payload),
		)
		return nil
	}

	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) Recent(ctx context.Context, action string, limit int) ([]auditdomain.AuditLog, error) {
	if s.repo == nil {
		return nil, auditdomain.ErrNotPersisted
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}

	items, err := s.repo.List(ctx, auditdomain.ListFilter{Action: action, Limit: limit})
	if err != nil {
		return nil, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, nil
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
