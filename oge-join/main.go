package main

import (
	"context"
	"log"
	"log/slog"

	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/joiner"
	"open-geo-engine/pipeline"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var concurrency = flag.Int("concurrency", 4, "Pollution files joined in parallel")

func main() {
	pipeline.Setup()
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	j, err := joiner.New(cfg.Joiner)
	if err != nil {
		log.Fatal(err)
	}
	j.Concurrency = *concurrency

	path, err := j.Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("done", "path", path)
}
