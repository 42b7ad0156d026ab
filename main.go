package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/pipeline"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var place = flag.StringP("place", "p", "", "Place to fetch buildings for (overrides the configuration)")

func main() {
	pipeline.Setup()
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *place != "" {
		cfg.OSM.UsePlace(*place)
	}

	env := pipeline.EnvFromOS()
	if env.EEProject == "" {
		log.Fatal("EE_PROJECT not set")
	}

	services, err := pipeline.OpenServices(ctx, cfg, env)
	if err != nil {
		log.Fatal(err)
	}
	defer services.Close()

	p, err := pipeline.New(cfg, services)
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("starting pipeline", "run", p.RunID, "place", cfg.OSM.Place)
	if err := p.RunFull(ctx); err != nil {
		log.Fatal(err)
	}
	slog.Info("pipeline done", "run", p.RunID)
}
