package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/pipewright/pipewright/internal/client"
	"github.com/pipewright/pipewright/internal/observability"
)

func main() {
	var (
		configPath   string
		profilesPath string
		profileName  string
		driverPath   string
	)
	flag.StringVar(&configPath, "config", "", "path to a TOML driver config")
	flag.StringVar(&profilesPath, "profiles", "", "path to a TOML catalog of named driver configs")
	flag.StringVar(&profileName, "profile", "", "profile to select from -profiles")
	flag.StringVar(&driverPath, "driver", "", "driver executable, overrides the config file")
	flag.Parse()

	observability.InitLogger("pipewright")

	cfg, err := resolveDriverConfig(configPath, profilesPath, profileName, driverPath, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load driver config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	drv, err := client.Launch(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to launch driver")
	}
	defer drv.Stop()

	pw := drv.Playwright()
	for _, bt := range []*client.BrowserType{pw.Chromium, pw.Firefox, pw.WebKit} {
		if bt == nil {
			continue
		}
		log.Info().
			Str("browser", bt.Name()).
			Str("executable", bt.ExecutablePath()).
			Msg("driver browser available")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("interrupt received, shutting down")
	case <-drv.Connection().Done():
		log.Info().Msg("driver connection closed")
	}
}
