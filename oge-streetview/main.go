package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/pipeline"
	"open-geo-engine/table"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var samplesPath = flag.StringP("samples", "s", "", "Satellite samples CSV (defaults to the load data output)")

func main() {
	pipeline.Setup()
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	env := pipeline.EnvFromOS()
	env.StreetViewKey = pipeline.MustGetEnv("GOOGLE_STREETVIEW_KEY")

	services, err := pipeline.OpenServices(ctx, cfg, env)
	if err != nil {
		log.Fatal(err)
	}
	defer services.Close()

	p, err := pipeline.New(cfg, services)
	if err != nil {
		log.Fatal(err)
	}

	path := *samplesPath
	if path == "" {
		paths := p.SatellitePaths()
		if len(paths) == 0 {
			log.Fatal("no samples path: pass --samples or configure time aggregations")
		}
		path = paths[0]
	}
	samples, err := table.ReadCSV(path)
	if err != nil {
		log.Fatal(err)
	}

	out, err := p.StreetViewFlow(ctx, samples)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "rows", out.Len(), "path", p.StreetViewPath())
}
