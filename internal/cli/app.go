package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
	"github.com/aussiebroadwan/yammer/pkg/yammersdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var errNoCredentials = errors.New("no access token: set YAMMER_ACCESS_TOKEN, pass --code, or run `yammer login`")

// App carries what every command needs.
type App struct {
	cfg     Config
	logger  *slog.Logger
	out     io.Writer
	metrics *yammersdk.Metrics
	reg     *prometheus.Registry

	// httpClient is nil outside tests.
	httpClient *http.Client
}

// New builds an App that writes command output to out.
func New(cfg Config, version string, out io.Writer) *App {
	reg := prometheus.NewRegistry()
	return &App{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "yammer-cli",
			Version: version,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		out:     out,
		metrics: yammersdk.NewMetrics(reg),
		reg:     reg,
	}
}

func (a *App) clientOptions() []yammersdk.Option {
	opts := []yammersdk.Option{
		yammersdk.WithLogger(a.logger),
		yammersdk.WithMetrics(a.metrics),
		yammersdk.WithRequestTimeout(a.cfg.RequestTimeout),
		yammersdk.WithRateLimit(yammersdk.BucketDefault, a.cfg.RateLimit),
		yammersdk.WithRateLimit(yammersdk.BucketMessages, yammersdk.MessagesLimit),
	}
	if mode, err := yammersdk.ParseDecodeMode(a.cfg.DecodeMode); err == nil {
		opts = append(opts, yammersdk.WithDecodeMode(mode))
	}
	if a.httpClient != nil {
		opts = append(opts, yammersdk.WithHTTPClient(a.httpClient))
	}
	return opts
}

// codeClient builds a client for the authorization-code flow.
func (a *App) codeClient(code string) (*yammersdk.Client, error) {
	return yammersdk.NewClient(yammersdk.Config{
		ClientID:          a.cfg.ClientID,
		ClientSecret:      a.cfg.ClientSecret,
		RedirectURI:       a.cfg.RedirectURI,
		AuthorizationCode: code,
		BaseURL:           a.cfg.BaseURL,
	}, a.clientOptions()...)
}

// client builds a client from the supplied token, or from code when there is none.
func (a *App) client(code string) (*yammersdk.Client, error) {
	if a.cfg.AccessToken != "" {
		opts := append(a.clientOptions(), yammersdk.WithBaseURL(a.cfg.BaseURL))
		return yammersdk.NewClientWithToken(a.cfg.AccessToken, opts...)
	}
	if code == "" {
		return nil, errNoCredentials
	}
	return a.codeClient(code)
}

// writeMetrics dumps the client metrics gathered during the command in the
// Prometheus text format.
func (a *App) writeMetrics(w io.Writer) error {
	if a.reg == nil {
		return nil
	}
	families, err := a.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
