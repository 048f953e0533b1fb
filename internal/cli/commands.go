// Package cli implements feederctl, a terminal host for the dashboard's
// auth flows. Each command opens one headless page context, runs a single
// flow against the hosted backend and closes the context again.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/auth/flow"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"github.com/spf13/cobra"
)

// Execute runs feederctl and reports whether the failure, if any, was
// already printed.
func Execute(args []string, in io.Reader, out io.Writer) (printed bool, err error) {
	root := NewRootCommand(in, out)
	root.SetArgs(args)
	err = root.Execute()
	return errors.Is(err, errFlowFailed), err
}

func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:           "feederctl",
		Short:         "Sign in to the pet feeder dashboard from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("backend-url", "", "backend base URL (SUPABASE_URL)")
	flags.String("anon-key", "", "public backend key (SUPABASE_ANON_KEY)")
	flags.String("site-url", defaultSiteURL, "public origin of the dashboard")
	flags.String("captcha-token", "", "verification token obtained in a browser")
	flags.Duration("captcha-timeout", defaultCaptchaTimeout, "how long to wait for the verification widget")
	flags.String("state-dir", defaultStateDir(), "directory holding the stored session")
	flags.BoolP("verbose", "v", false, "log to stderr")
	_ = v.BindPFlags(flags)

	rt := func() (*runtime, error) {
		cfg, err := LoadConfig(v)
		if err != nil {
			return nil, err
		}
		return newRuntime(cfg, in, out)
	}

	root.AddCommand(
		loginCommand(rt),
		signupCommand(rt),
		logoutCommand(rt),
		whoamiCommand(rt),
		resetPasswordCommand(rt),
		oauthCommand(rt),
		devicesCommand(rt),
	)
	return root
}

type runtimeFunc func() (*runtime, error)

func finish(res authdomain.FlowResult) error {
	if res.Skipped {
		return authdomain.ErrFlowAlreadyActive
	}
	if !res.OK {
		return errFlowFailed
	}
	return nil
}

func loginCommand(rt runtimeFunc) *cobra.Command {
	var email, password, redirect string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			location := flow.RouteLogin
			if redirect != "" {
				location += "?redirect=" + url.QueryEscape(redirect)
			}
			pc, err := r.open(cmd.Context(), location, flow.FormLogin)
			if err != nil {
				return err
			}
			defer pc.Close()

			if password, err = r.readSecret("Password: ", password); err != nil {
				return err
			}
			res := pc.Flows.SignIn(cmd.Context(), flow.SignInInput{
				Email:    email,
				Password: password,
				Redirect: pc.RedirectParam(),
			})
			return finish(res)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password, read from stdin when empty")
	cmd.Flags().StringVar(&redirect, "redirect", "", "page to open after signing in")
	return cmd
}

func signupCommand(rt runtimeFunc) *cobra.Command {
	var (
		in     flow.SignUpInput
		accept bool
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			pc, err := r.open(cmd.Context(), "/signup", flow.FormSignup)
			if err != nil {
				return err
			}
			defer pc.Close()

			if in.Password, err = r.readSecret("Password: ", in.Password); err != nil {
				return err
			}
			if in.ConfirmPassword, err = r.readSecret("Confirm password: ", in.ConfirmPassword); err != nil {
				return err
			}
			in.AcceptTerms = accept
			return finish(pc.Flows.SignUp(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, read from stdin when empty")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm-password", "", "password confirmation, read from stdin when empty")
	cmd.Flags().BoolVar(&accept, "accept-terms", false, "accept the terms of service")
	return cmd
}

func logoutCommand(rt runtimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			pc, err := r.open(cmd.Context(), flow.RouteLanding)
			if err != nil {
				return err
			}
			defer pc.Close()
			return finish(pc.Flows.SignOut(cmd.Context()))
		},
	}
}

func whoamiCommand(rt runtimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			pc, err := r.open(cmd.Context(), flow.RouteDashboard)
			if err != nil {
				return err
			}
			defer pc.Close()

			principal := pc.Session.Current()
			if pc.Redirected || principal == nil {
				return ErrNotSignedIn
			}
			return json.NewEncoder(r.out).Encode(principal)
		},
	}
}

func resetPasswordCommand(rt runtimeFunc) *cobra.Command {
	var (
		email        string
		accessToken  string
		refreshToken string
		password     string
		confirm      string
	)
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a reset link, or set a new password with the link's tokens",
		Long: "Without --access-token a reset link is mailed to --email. With the tokens " +
			"from the link, the recovering session is installed and a new password set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if accessToken == "" {
				pc, err := r.open(ctx, "/forgot-password", flow.FormReset)
				if err != nil {
					return err
				}
				defer pc.Close()
				return finish(pc.Flows.RequestPasswordReset(ctx, flow.ResetRequestInput{Email: email}))
			}

			pc, err := r.open(ctx, flow.RouteResetPassword)
			if err != nil {
				return err
			}
			defer pc.Close()

			if _, err := pc.Client.SetSession(ctx, accessToken, refreshToken); err != nil {
				return fmt.Errorf("reset link rejected: %w", err)
			}
			if password, err = r.readSecret("New password: ", password); err != nil {
				return err
			}
			if confirm, err = r.readSecret("Confirm password: ", confirm); err != nil {
				return err
			}
			return finish(pc.Flows.ConfirmPasswordReset(ctx, flow.ResetConfirmInput{
				Password:        password,
				ConfirmPassword: confirm,
			}))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "access token from the reset link")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token from the reset link")
	cmd.Flags().StringVar(&password, "password", "", "new password, read from stdin when empty")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "new password confirmation, read from stdin when empty")
	return cmd
}

func oauthCommand(rt runtimeFunc) *cobra.Command {
	var provider, redirect, code string
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Print the provider consent URL, or finish with --code",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pc, err := r.open(ctx, flow.RouteLogin)
			if err != nil {
				return err
			}
			defer pc.Close()

			if code == "" {
				res := pc.Flows.OAuth(ctx, flow.OAuthInput{Provider: provider, Redirect: redirect})
				if err := finish(res); err != nil {
					return err
				}
				fmt.Fprintln(r.out, r.term.LastNavigation())
				return nil
			}

			verifier, ok, err := r.store.TakeVerifier(provider)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no pending sign in with %q, run feederctl oauth --provider %s first", provider, provider)
			}
			if _, err := pc.Client.ExchangeCode(ctx, code, verifier); err != nil {
				return err
			}
			principal, err := pc.Session.Refresh(ctx)
			if err != nil {
				return err
			}
			if principal == nil {
				return ErrNotSignedIn
			}
			return json.NewEncoder(r.out).Encode(principal)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "google", "identity provider")
	cmd.Flags().StringVar(&redirect, "redirect", "", "page to open after signing in")
	cmd.Flags().StringVar(&code, "code", "", "authorization code from the callback URL")
	return cmd
}

func devicesCommand(rt runtimeFunc) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the feeders of the signed-in user as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt()
			if err != nil {
				return err
			}
			pc, err := r.open(cmd.Context(), "/devices")
			if err != nil {
				return err
			}
			defer pc.Close()
			if pc.Redirected {
				return ErrNotSignedIn
			}

			var rows []map[string]any
			if err := pc.Client.From(backend.TableDevices).Order("name", true).Limit(limit).
				Select(cmd.Context(), "*", &rows); err != nil {
				return err
			}
			enc := json.NewEncoder(r.out)
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
