// Package portal implements the portal command line.
package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/learning-portal-client/internal/app"
	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/devapi"
	"github.com/sandeepkv93/learning-portal-client/internal/di"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/tools/common"
	"github.com/sandeepkv93/learning-portal-client/internal/tools/loadgen"
	"github.com/sandeepkv93/learning-portal-client/internal/tools/ui"
)

// ErrFailed is returned by Execute after a failure has already been reported to the user.
var ErrFailed = errors.New("command failed")

type options struct {
	envFile string
	ci      bool
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "portal",
		Short:         "Learning portal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline for one-shot commands")
	cmd.AddCommand(
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newRequestCommand(opts),
		newLoadgenCommand(opts),
		newServeCommand(opts),
		newDevAPICommand(opts),
	)
	return cmd
}

func loadConfig(ctx context.Context, opts *options) (*config.Config, error) {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	return config.Load(ctx)
}

// withApp assembles the client, runs fn under the spinner (or directly with --ci) and reports
// the outcome.
func withApp(cmd *cobra.Command, opts *options, title string, fn func(context.Context, *app.App) ([]string, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return report(cmd, opts, title, nil, err)
	}
	a, cleanup, err := di.InitializeApp(ctx, cfg, ui.Notifier{W: cmd.ErrOrStderr()})
	if err != nil {
		return report(cmd, opts, title, nil, err)
	}
	defer cleanup()
	defer func() { _ = a.Close() }()

	details, err := run(ctx, opts, title, func(ctx context.Context) ([]string, error) {
		return fn(ctx, a)
	})
	return report(cmd, opts, title, details, err)
}

func run(ctx context.Context, opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, func(uiCtx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(uiCtx, opts.timeout)
		defer cancel()
		return fn(ctx)
	})
}

func report(cmd *cobra.Command, opts *options, title string, details []string, err error) error {
	if opts.ci {
		common.FprintCIResult(cmd.OutOrStdout(), err == nil, title, details, err)
	} else {
		ui.Summary(cmd.ErrOrStderr(), title, details, err)
	}
	if err != nil {
		return ErrFailed
	}
	return nil
}

func describe(a *app.App) []string {
	state := a.Store.Snapshot()
	if state.User == nil {
		return []string{"status=" + string(state.Status())}
	}
	return []string{
		"status=" + string(state.Status()),
		fmt.Sprintf("user=%s <%s>", state.User.Name, state.User.Email),
		"role=" + state.User.Role,
	}
}

func newLoginCommand(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PORTAL_PASSWORD")
			}
			return withApp(cmd, opts, "portal login", func(ctx context.Context, a *app.App) ([]string, error) {
				if _, err := a.Auth.SignIn(ctx, email, password); err != nil {
					return nil, err
				}
				return describe(a), nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (defaults to $PORTAL_PASSWORD)")
	return cmd
}

func newRegisterCommand(opts *options) *cobra.Command {
	var in service.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("PORTAL_PASSWORD")
			}
			return withApp(cmd, opts, "portal register", func(ctx context.Context, a *app.App) ([]string, error) {
				if _, err := a.Auth.Register(ctx, in); err != nil {
					return nil, err
				}
				return describe(a), nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password (defaults to $PORTAL_PASSWORD)")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, "portal logout", func(ctx context.Context, a *app.App) ([]string, error) {
				if _, err := a.Store.LoadDurable(ctx); err != nil {
					a.Logger.WarnContext(ctx, "load persisted session", "error", err)
				}
				if err := a.Auth.SignOut(ctx); err != nil {
					return nil, err
				}
				return describe(a), nil
			})
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the persisted session and show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, "portal whoami", func(ctx context.Context, a *app.App) ([]string, error) {
				a.Bootstrap(ctx)
				return describe(a), nil
			})
		},
	}
}

func newLoadgenCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate concurrent authenticated traffic through the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, "portal loadgen", func(ctx context.Context, a *app.App) ([]string, error) {
				if _, err := a.Store.LoadDurable(ctx); err != nil {
					return nil, err
				}
				lg := cfg
				lg.Client = a.Gateway
				res, err := loadgen.Run(ctx, lg)
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("total=%d failures=%d elapsed=%s", res.TotalRequests, res.Failures, res.Elapsed.Truncate(time.Millisecond))}
				for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other"} {
					if n := res.ByStatusClass[class]; n > 0 {
						details = append(details, fmt.Sprintf("%s=%d", class, n))
					}
				}
				return details, nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: content, account or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second across all workers")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "path selection seed")
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local UI shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			a, cleanup, err := di.InitializeApp(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()
			defer func() { _ = a.Close() }()
			return a.Serve(ctx)
		},
	}
}

func newDevAPICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devapi",
		Short: "Run the local remote-API emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg, cmd.ErrOrStderr())
			rt, err := observability.InitRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownObservabilityTimeout)
				defer cancel()
				_ = rt.Shutdown(shutdownCtx)
			}()
			srv, err := devapi.Open(ctx, devapi.Options{Config: cfg.DevAPI, EnableOTelHTTP: cfg.EnableOTelHTTP, Logger: rt.Logger})
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()
			return srv.ListenAndServe(ctx)
		},
	}
}
