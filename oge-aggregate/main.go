package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/aggregate"
	"open-geo-engine/config"
	"open-geo-engine/pipeline"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var aggregations = flag.StringSliceP("aggregation", "a", nil, "Time aggregations to run: date, month")
var concurrency = flag.Int("concurrency", 4, "Files aggregated in parallel")

func main() {
	pipeline.Setup()
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if len(*aggregations) > 0 {
		cfg.Aggregator.TimeAggregations = *aggregations
	}

	a, err := aggregate.New(cfg.Aggregator)
	if err != nil {
		log.Fatal(err)
	}
	a.Concurrency = *concurrency

	paths, err := a.Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "files", len(paths), "dir", cfg.Aggregator.DescribedDir)
}
