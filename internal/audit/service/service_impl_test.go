package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/petfeeder/internal/audit/domain"
	"github.com/smallbiznis/petfeeder/internal/audit/repository"
	obscontext "github.com/smallbiznis/petfeeder/internal/observability/context"
	"github.com/smallbiznis/petfeeder/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestRecordPersistsMaskedEntry(t *testing.T) {
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	svc := NewService(Params{
		Log:   zap.NewNop(),
		GenID: newNode(t),
		Repo:  repository.Provide(conn),
	})

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithClientIP(ctx, "203.0.113.9")
	err = svc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionCaptchaFallback,
		TargetType: auditdomain.TargetTypeCaptcha,
		TargetID:   "01HZX3",
		Metadata: map[string]any{
			"token":  "captcha-fallback-unavailable",
			"reason": "script_load_timeout",
		},
	})
	require.NoError(t, err)

	logs, err := svc.Recent(context.Background(), auditdomain.ActionCaptchaFallback, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	got := logs[0]
	assert.Equal(t, string(auditdomain.ActorTypeVisitor), got.ActorType)
	require.NotNil(t, got.TargetID)
	assert.Equal(t, "01HZX3", *got.TargetID)
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "203.0.113.9", *got.IPAddress)
	assert.Nil(t, got.UserAgent)
	assert.Equal(t, "****able", got.Metadata["token"])
	assert.Equal(t, "script_load_timeout", got.Metadata["reason"])
	assert.Equal(t, "req-7", got.Metadata["request_id"])
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	svc := NewService(Params{Log: zap.NewNop(), GenID: newNode(t), Repo: repository.Provide(conn)}).(*Service)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{auditdomain.ActionCaptchaVerified, auditdomain.ActionCaptchaRejected, auditdomain.ActionCaptchaVerified} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{Action: action, TargetType: auditdomain.TargetTypeCaptcha}))
	}

	logs, err := svc.Recent(context.Background(), auditdomain.ActionCaptchaVerified, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))

	all, err := svc.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordWithoutRepositoryLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewService(Params{Log: zap.New(core), GenID: newNode(t)})

	require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{Action: auditdomain.ActionCaptchaReplay}))
	assert.Equal(t, 1, logs.FilterMessage("audit").Len())

	_, err := svc.Recent(context.Background(), "", 5)
	assert.ErrorIs(t, err, auditdomain.ErrNotPersisted)
}

func TestRecordRejectsBlankAction(t *testing.T) {
	svc := NewService(Params{Log: zap.NewNop(), GenID: newNode(t)})
	assert.ErrorIs(t, svc.Record(context.Background(), auditdomain.Entry{Action: " "}), auditdomain.ErrInvalidAction)
}
