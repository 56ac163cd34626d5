package cli

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/cryptox"
	"github.com/aussiebroadwan/yammer/pkg/oauthstate"
	"github.com/aussiebroadwan/yammer/pkg/yammersdk"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// NewRootCommand wires every subcommand to app.
func NewRootCommand(app *App, version string) *cobra.Command {
	var code string
	var showMetrics bool

	root := &cobra.Command{
		Use:           "yammer",
		Short:         "Command line client for the Yammer REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !showMetrics {
				return nil
			}
			return app.writeMetrics(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&code, "code", "", "authorization code to exchange when no access token is configured")
	root.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print request metrics to stderr when done")

	client := func() (*yammersdk.Client, error) { return app.client(code) }

	root.AddCommand(
		newVersionCommand(version),
		newLoginCommand(app),
		newLoginURLCommand(app),
		newWhoamiCommand(app, client),
		newUsersCommand(app, client),
		newUserCommand(app, client),
		newImpersonateCommand(app, client),
		newPostCommand(app, client),
		newDMCommand(app, client),
		newDMsCommand(app, client),
		newInviteCommand(app, client),
	)
	return root
}

type clientFunc func() (*yammersdk.Client, error)

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func (a *App) stateSigner() (*oauthstate.Signer, error) {
	return oauthstate.NewSigner(a.cfg.ClientSecret, a.cfg.ClientID, oauthstate.DefaultTTL)
}

func newLoginURLCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login-url",
		Short: "Print the provider login URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.codeClient("")
			if err != nil {
				return err
			}
			signer, err := app.stateSigner()
			if err != nil {
				return err
			}
			state, err := signer.Issue("")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.LoginRedirectURI(state))
			return nil
		},
	}
}

func newLoginCommand(app *App) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and print the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			c, err := app.codeClient("")
			if err != nil {
				return err
			}
			signer, err := app.stateSigner()
			if err != nil {
				return err
			}
			state, err := signer.Issue("")
			if err != nil {
				return err
			}

			redirect, err := url.Parse(app.cfg.RedirectURI)
			if err != nil {
				return fmt.Errorf("invalid redirect URI: %w", err)
			}

			ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", app.cfg.CallbackPort))
			if err != nil {
				return fmt.Errorf("listen for callback: %w", err)
			}

			loginURL := c.LoginRedirectURI(state)
			fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL to sign in:\n\n  %s\n\n", loginURL)
			if !noBrowser {
				if err := browser.OpenURL(loginURL); err != nil {
					app.logger.Warn("could not open browser", "error", err)
				}
			}

			srv := newCallbackServer(redirect.Path, signer, app.logger)
			res := srv.wait(ctx, ln, app.cfg.CallbackTimeout)
			if res.Err != nil {
				return res.Err
			}

			return app.completeLogin(ctx, c, res.Code)
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "only print the login URL")
	return cmd
}

type loginResult struct {
	AccessToken string          `json:"access_token"`
	Fingerprint string          `json:"fingerprint"`
	User        *yammersdk.User `json:"user,omitempty"`
}

func (a *App) completeLogin(ctx context.Context, c *yammersdk.Client, code string) error {
	if err := c.SetAuthorizationCode(ctx, code); err != nil {
		return err
	}
	token := c.Token()
	if token.IsZero() {
		return fmt.Errorf("login failed: no access token issued")
	}

	user, err := c.CurrentUserOrAuthenticate(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(loginResult{
		AccessToken: token.Value,
		Fingerprint: cryptox.FingerprintToken(token.Value),
		User:        user,
	})
}

func newWhoamiCommand(app *App, client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			u, err := c.CurrentUserOrAuthenticate(cmd.Context())
			if err != nil {
				return err
			}
			return app.printJSON(u)
		},
	}
}

func newUsersCommand(app *App, client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the network's users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			users, err := c.Users(cmd.Context())
			if err != nil {
				return err
			}
			return app.printJSON(users)
		},
	}
}

func newUserCommand(app *App, client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "user <email>",
		Short: "Look a user up by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			u, err := c.UserByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no user with email %q", args[0])
			}
			return app.printJSON(u)
		},
	}
}

func newImpersonateCommand(app *App, client clientFunc) *cobra.Command {
	var request bool

	cmd := &cobra.Command{
		Use:   "impersonate <email>",
		Short: "Print a token that acts as another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			token, err := c.ResolveImpersonationToken(cmd.Context(), args[0], request)
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("no impersonation grant available for %q", args[0])
			}
			return app.printJSON(map[string]string{"email": args[0], "token": token})
		},
	}
	cmd.Flags().BoolVar(&request, "request", false, "request a new grant when none exists (verified admins only)")
	return cmd
}

func newPostCommand(app *App, client clientFunc) *cobra.Command {
	var (
		groupID int64
		topics  []string
		ogURL   string
		ogTitle string
	)

	cmd := &cobra.Command{
		Use:   "post <body>",
		Short: "Post a message to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var og *yammersdk.OpenGraph
			if ogURL != "" {
				og = &yammersdk.OpenGraph{URL: ogURL, Title: ogTitle}
			}

			payload := yammersdk.MessagePayload{Body: args[0], GroupID: groupID, Topics: topics, OpenGraph: og}
			if len(topics) > 1 {
				p, err := yammersdk.NewTopicsMessage(args[0], groupID, topics, og)
				if err != nil {
					return err
				}
				payload = p
			}

			c, err := client()
			if err != nil {
				return err
			}
			thread, err := c.Post(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return app.printJSON(thread)
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (0 posts to All Company)")
	cmd.Flags().StringArrayVar(&topics, "topic", nil, "topic; repeat for several (one, or three and more)")
	cmd.Flags().StringVar(&ogURL, "og-url", "", "attach an Open Graph object with this URL")
	cmd.Flags().StringVar(&ogTitle, "og-title", "", "Open Graph title")
	return cmd
}

func newDMCommand(app *App, client clientFunc) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "dm <user-id> <body>",
		Short: "Send a private message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			c, err := client()
			if err != nil {
				return err
			}
			thread, err := c.PostDirectMessage(cmd.Context(), args[1], userID, topic)
			if err != nil {
				return err
			}
			return app.printJSON(thread)
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "optional topic")
	return cmd
}

func newDMsCommand(app *App, client clientFunc) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "dms",
		Short: "List recent private messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			msgs, err := c.DirectMessagesSince(cmd.Context(), time.Now().Add(-since))
			if err != nil {
				return err
			}
			return app.printJSON(msgs)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	return cmd
}

func newInviteCommand(app *App, client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite someone to the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			res, err := c.SendInvitation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(version string) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	app := New(cfg, version, os.Stdout)
	if err := NewRootCommand(app, version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
