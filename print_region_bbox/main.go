package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gofrs/uuid"
	"github.com/paulmach/orb"
	flag "github.com/spf13/pflag"

	"open-geo-engine/config"
	"open-geo-engine/pipeline"
	"open-geo-engine/repos"
)

var configPath = flag.StringP("config", "c", config.DefaultPath, "Path to the YAML configuration")
var runID = flag.String("run", "", "Also print the bounds of building centroids stored for this run")

func main() {
	pipeline.Setup()

	flag.Usage = func() {
		_, _ = fmt.Fprintln(os.Stderr, "print_region_bbox: Prints the export regions and stored centroid bounds")
		flag.PrintDefaults()
	}
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	countries, err := cfg.Data.Countries()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Country Bounding Boxes (left, bottom, right, top):")
	for _, c := range countries {
		printBound(fmt.Sprintf("%s (%s)", c.Name, c.Code), c.Bound)
	}

	if *runID == "" {
		return
	}
	id, err := uuid.FromString(*runID)
	if err != nil {
		log.Fatal(err)
	}

	repo, err := repos.Connect(ctx, pipeline.MustGetEnv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	found, err := repo.ListBuildingCentroids(ctx, id)
	if err != nil {
		log.Fatal(err)
	}
	if len(found) == 0 {
		fmt.Printf("run %s: no building centroids\n", id)
		return
	}

	bound := found[0].Centroid.Bound()
	for _, b := range found[1:] {
		bound = bound.Extend(b.Centroid)
	}
	printBound(fmt.Sprintf("run %s, %d centroids", id, len(found)), bound)
}

func printBound(name string, b orb.Bound) {
	fmt.Printf("%s: %.6f,%.6f,%.6f,%.6f\n", name, b.Left(), b.Bottom(), b.Right(), b.Top())
}
