package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/pipeline"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var place = flag.StringP("place", "p", "", "Place to fetch buildings for (overrides the configuration)")
var radius = flag.Float64P("radius", "r", 0, "Search radius in meters around configured points")

func main() {
	pipeline.Setup()
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *place != "" {
		cfg.OSM.UsePlace(*place)
	}
	if *radius > 0 {
		cfg.OSM.Radius = *radius
	}

	services, err := pipeline.OpenServices(ctx, cfg, pipeline.EnvFromOS())
	if err != nil {
		log.Fatal(err)
	}
	defer services.Close()

	p, err := pipeline.New(cfg, services)
	if err != nil {
		log.Fatal(err)
	}

	found, err := p.BuildingsFlow(ctx)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "buildings", len(found), "path", p.BuildingsPath())
}
