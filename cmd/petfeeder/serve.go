package main

import (
	"github.com/smallbiznis/petfeeder/internal/audit"
	"github.com/smallbiznis/petfeeder/internal/config"
	"github.com/smallbiznis/petfeeder/internal/migration"
	"github.com/smallbiznis/petfeeder/internal/observability"
	"github.com/smallbiznis/petfeeder/internal/ratelimit"
	"github.com/smallbiznis/petfeeder/internal/server"
	"github.com/smallbiznis/petfeeder/pkg/db"
	"go.uber.org/fx"
)

func serve() error {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Captcha verification
		audit.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
	return app.Err()
}
