// Command regionctl resolves a single viewport against a document store and
// prints the region tree as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/region-resolver/internal/app"
	"github.com/mohammed-shakir/region-resolver/internal/core/config"
	"github.com/mohammed-shakir/region-resolver/internal/core/model"
	"github.com/mohammed-shakir/region-resolver/internal/core/router"
	"github.com/mohammed-shakir/region-resolver/internal/logger"
)

var version = "dev"

var CLI struct {
	EnvFile string `name:"env-file" help:"Optional dotenv file" default:".env"`

	Resolve ResolveCmd `cmd:"" help:"Resolve the regions intersecting a viewport"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

type ResolveCmd struct {
	BBox          string        `name:"bbox" required:"" help:"Viewport as minLon,minLat,maxLon,maxLat"`
	HighPrecision bool          `name:"high-precision" help:"Confirm county matches with polygon geometry"`
	BaseURL       string        `name:"base-url" help:"Document store base url (defaults to INDEX_BASE_URL)"`
	Timeout       time.Duration `name:"timeout" default:"30s" help:"Overall resolve timeout"`
	Compact       bool          `name:"compact" help:"Print JSON on one line"`
	Strict        bool          `name:"strict" help:"Exit non-zero when the result carries error diagnostics"`
}

var errDegraded = errors.New("resolve reported error diagnostics")

func (c *ResolveCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if c.BaseURL != "" {
		cfg.IndexBaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	}
	return c.resolve(ctx, cfg, os.Stdout, os.Stderr)
}

func (c *ResolveCmd) resolve(ctx context.Context, cfg config.Config, out, errOut io.Writer) error {
	viewport, err := router.ParseBBox(c.BBox)
	if err != nil {
		return fmt.Errorf("--bbox: %w", err)
	}

	zl := logger.Build(logger.Config{Level: "warn", Component: "regionctl"}, errOut)
	log := logger.NewSlog(&zl)

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res := a.Resolver.Resolve(logger.WithRequestID(ctx, ""), viewport, c.HighPrecision)

	enc := json.NewEncoder(out)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if c.Strict {
		for _, d := range res.Diagnostics {
			if d.Level == model.LevelError {
				return errDegraded
			}
		}
	}
	return nil
}

type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println(version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("regionctl"),
		kong.Description("Resolve administrative regions intersecting a viewport"),
		kong.UsageOnError(),
	)
	// commands read the environment in Run, after parsing
	_ = godotenv.Load(CLI.EnvFile)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
