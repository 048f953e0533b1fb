package main

import (
	"encoding/json"
	"os"

	"github.com/smallbiznis/petfeeder/internal/audit"
	auditdomain "github.com/smallbiznis/petfeeder/internal/audit/domain"
	"github.com/smallbiznis/petfeeder/internal/config"
	"github.com/smallbiznis/petfeeder/internal/observability"
	"github.com/smallbiznis/petfeeder/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func auditCommand() *cobra.Command {
	var (
		action string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent captcha audit rows as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				audit.Module,
				fx.Invoke(func(svc auditdomain.Service) error {
					logs, err := svc.Recent(cmd.Context(), action, limit)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(os.Stdout)
					for _, entry := range logs {
						if err := enc.Encode(entry); err != nil {
							return err
						}
					}
					return nil
				}),
			)
			return app.Err()
		},
	}
	cmd.Flags().StringVar(&action, "action", auditdomain.ActionCaptchaFallback, "audit action to list; empty lists all")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print")
	return cmd
}
