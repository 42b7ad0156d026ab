// Package config holds the static settings of every pipeline stage. Settings
// are read from a YAML file and unset fields take the defaults below.
// Secrets never live here; commands read them from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"open-geo-engine/cache"
)

const DefaultPath = "open-geo-engine.yaml"

type Config struct {
	Data        DataConfig        `yaml:"data"`
	OSM         OSMConfig         `yaml:"osm"`
	StreetView  StreetViewConfig  `yaml:"streetview"`
	Aggregator  AggregatorConfig  `yaml:"aggregator"`
	Joiner      JoinerConfig      `yaml:"joiner"`
	Predictions PredictionsConfig `yaml:"predictions"`
	Cache       cache.Config      `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
}

type DataConfig struct {
	CountryCodes         []string        `yaml:"country_codes"`
	CountryBoundingBoxes map[string]BBox `yaml:"country_bounding_boxes"`
	Place                string          `yaml:"place"`

	Year      int `yaml:"year"`
	MonStart  int `yaml:"mon_start"`
	DateStart int `yaml:"date_start"`
	YearEnd   int `yaml:"year_end"`
	MonEnd    int `yaml:"mon_end"`
	DateEnd   int `yaml:"date_end"`

	ImageCollection string   `yaml:"image_collection"`
	ImageBands      []string `yaml:"image_bands"`
	Scale           float64  `yaml:"scale"`
	BaseFolder      string   `yaml:"base_folder"`
	ModelName       string   `yaml:"model_name"`
	Endpoint        string   `yaml:"endpoint"`
	Concurrency     int      `yaml:"concurrency"`
	OutDir          string   `yaml:"out_dir"`
}

type OSMConfig struct {
	Place        string              `yaml:"place"`
	Tags         map[string][]string `yaml:"tags"`
	Points       [][2]float64        `yaml:"points"` // lon, lat
	Radius       float64             `yaml:"radius"`
	H3Resolution int                 `yaml:"h3_resolution"`
	Overpass     string              `yaml:"overpass_endpoint"`
	Nominatim    string              `yaml:"nominatim_endpoint"`
	Concurrency  int                 `yaml:"concurrency"`
}

type StreetViewConfig struct {
	Size                string `yaml:"size"`
	Heading             string `yaml:"heading"`
	Pitch               string `yaml:"pitch"`
	FOV                 string `yaml:"fov"`
	LocalImageFolder    string `yaml:"local_image_folder"`
	LocalLinksFolder    string `yaml:"local_links_folder"`
	LocalMetadataFolder string `yaml:"local_metadata_folder"`
	Place               string `yaml:"place"`
	Base                string `yaml:"base"`
	MetaBase            string `yaml:"meta_base"`
	Concurrency         int    `yaml:"concurrency"`
}

type AggregatorConfig struct {
	InputDir         string   `yaml:"input_dir"`
	DescribedDir     string   `yaml:"described_dir"`
	TimeAggregations []string `yaml:"time_aggregations"`
}

type JoinerConfig struct {
	LocationFile     string   `yaml:"location_file"`
	SatelliteDir     string   `yaml:"satellite_dir"`
	PollutionDir     string   `yaml:"pollution_dir"`
	TimeAggregations []string `yaml:"time_aggregations"`
	JoinedDir        string   `yaml:"joined_dir"`
}

type PredictionsConfig struct {
	CSVFolder     string `yaml:"csv_folder"`
	GeoJSONFolder string `yaml:"geojson_folder"`
}

type StorageConfig struct {
	Kind      string `yaml:"kind"` // dir or minio
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
}

// UsePlace searches for footprints in the named place instead of around the
// configured points.
func (o *OSMConfig) UsePlace(place string) {
	o.Place = place
	o.Points = nil
}

// Load reads path and applies defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	d := &c.Data
	if len(d.CountryCodes) == 0 {
		d.CountryCodes = []string{"ES"}
	}
	if d.CountryBoundingBoxes == nil {
		d.CountryBoundingBoxes = make(map[string]BBox)
	}
	for code, bbox := range defaultBoundingBoxes {
		if _, ok := d.CountryBoundingBoxes[code]; !ok {
			d.CountryBoundingBoxes[code] = bbox
		}
	}
	setString(&d.Place, "Parque El Retiro, Madrid")
	if d.Year == 0 {
		d.Year, d.MonStart, d.DateStart = 2020, 1, 1
	}
	if d.YearEnd == 0 {
		d.YearEnd, d.MonEnd, d.DateEnd = 2021, 1, 1
	}
	setInt(&d.MonStart, 1)
	setInt(&d.DateStart, 1)
	setInt(&d.MonEnd, 1)
	setInt(&d.DateEnd, 1)
	setString(&d.ImageCollection, "LANDSAT/LC08/C01/T1")
	if len(d.ImageBands) == 0 {
		d.ImageBands = []string{"B4", "B3", "B2"}
	}
	if d.Scale == 0 {
		d.Scale = 10
	}
	setString(&d.BaseFolder, "ee_data")
	setString(&d.ModelName, "LANDSAT")
	setString(&d.Endpoint, "https://earthengine.googleapis.com")
	setInt(&d.Concurrency, 8)
	setString(&d.OutDir, "local_data")

	o := &c.OSM
	setString(&o.Place, d.Place)
	if len(o.Tags) == 0 {
		o.Tags = map[string][]string{"building": nil}
	}
	if o.Radius == 0 {
		o.Radius = 1000
	}
	setInt(&o.H3Resolution, 9)
	setString(&o.Overpass, "https://overpass-api.de/api/interpreter")
	setString(&o.Nominatim, "https://nominatim.openstreetmap.org/search")
	setInt(&o.Concurrency, 4)

	s := &c.StreetView
	setString(&s.Size, "600x300")
	setString(&s.Heading, "151.78")
	setString(&s.Pitch, "-0.76")
	setString(&s.LocalImageFolder, "local_data/streetview/images")
	setString(&s.LocalLinksFolder, "local_data/streetview/links")
	setString(&s.LocalMetadataFolder, "local_data/streetview/metadata")
	setString(&s.Place, "Parque_El_Retiro_Madrid")
	setString(&s.Base, "https://maps.googleapis.com/maps/api/streetview")
	setString(&s.MetaBase, "https://maps.googleapis.com/maps/api/streetview/metadata")
	setInt(&s.Concurrency, 8)

	a := &c.Aggregator
	setString(&a.InputDir, "local_data/satellite_data")
	setString(&a.DescribedDir, "local_data/described_satellite_data")
	if len(a.TimeAggregations) == 0 {
		a.TimeAggregations = []string{"date", "month"}
	}

	j := &c.Joiner
	setString(&j.LocationFile, "local_data/sensor_locations.csv")
	setString(&j.SatelliteDir, a.DescribedDir)
	setString(&j.PollutionDir, "local_data/pollution_data")
	if len(j.TimeAggregations) == 0 {
		j.TimeAggregations = a.TimeAggregations
	}
	setString(&j.JoinedDir, "local_data/joined_data")

	p := &c.Predictions
	setString(&p.CSVFolder, "local_data/Predicted_Data/csv")
	setString(&p.GeoJSONFolder, "local_data/Predicted_Data/geojson")

	if c.Cache.Kind == "" {
		c.Cache.Kind = "file"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * 24 * time.Hour
	}

	setString(&c.Storage.Kind, "dir")
	setString(&c.Storage.Bucket, "open-geo-engine-streetview")
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
