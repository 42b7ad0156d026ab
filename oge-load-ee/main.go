package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/buildings"
	"open-geo-engine/config"
	"open-geo-engine/pipeline"
	"open-geo-engine/table"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var buildingsPath = flag.StringP("buildings", "b", "", "Building centroids CSV (defaults to the buildings flow output)")
var export = flag.Bool("export", false, "Export weekly mean images per country instead of sampling centroids")
var year = flag.IntP("year", "y", 0, "Start year to load data from")
var yearEnd = flag.IntP("end-year", "e", 0, "End year to load data from")
var countries = flag.StringSlice("country", nil, "Country codes to export (overrides the configuration)")

func main() {
	pipeline.Setup()
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *year != 0 {
		cfg.Data.Year = *year
	}
	if *yearEnd != 0 {
		cfg.Data.YearEnd = *yearEnd
	}
	if len(*countries) > 0 {
		cfg.Data.CountryCodes = *countries
	}

	env := pipeline.EnvFromOS()
	env.EEProject = pipeline.MustGetEnv("EE_PROJECT")

	services, err := pipeline.OpenServices(ctx, cfg, env)
	if err != nil {
		log.Fatal(err)
	}
	defer services.Close()

	p, err := pipeline.New(cfg, services)
	if err != nil {
		log.Fatal(err)
	}

	if *export {
		ops, err := p.ExportFlow(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for _, op := range ops {
			slog.Info("export started", "operation", op)
		}
		return
	}

	path := *buildingsPath
	if path == "" {
		path = p.BuildingsPath()
	}
	t, err := table.ReadCSV(path)
	if err != nil {
		log.Fatal(err)
	}
	found, err := buildings.FromTable(t)
	if err != nil {
		log.Fatal(err)
	}

	samples, err := p.LoadDataFlow(ctx, found)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "samples", samples.Len(), "paths", p.SatellitePaths())
}
