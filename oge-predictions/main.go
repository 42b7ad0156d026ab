package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/pipeline"
	"open-geo-engine/predictions"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var csvFolder = flag.String("csv", "", "Folder of prediction CSVs (overrides the configuration)")
var geojsonFolder = flag.String("geojson", "", "Output folder (overrides the configuration)")

func main() {
	pipeline.Setup()
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *csvFolder != "" {
		cfg.Predictions.CSVFolder = *csvFolder
	}
	if *geojsonFolder != "" {
		cfg.Predictions.GeoJSONFolder = *geojsonFolder
	}

	countries, err := cfg.Data.Countries()
	if err != nil {
		log.Fatal(err)
	}

	path, err := predictions.New(countries, cfg.Predictions).Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "path", path)
}
