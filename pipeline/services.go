package pipeline

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	miniocredentials "github.com/minio/minio-go/v7/pkg/credentials"

	"open-geo-engine/buildings"
	"open-geo-engine/cache"
	"open-geo-engine/config"
	"open-geo-engine/earthengine"
	"open-geo-engine/nominatim"
	"open-geo-engine/overpass"
	"open-geo-engine/repos"
	"open-geo-engine/storage"
	"open-geo-engine/streetview"
)

// Services are the external systems the flows talk to. Nil services are
// unavailable; flows that need them fail.
type Services struct {
	Overpass    buildings.Overpass
	Geocoder    buildings.Geocoder
	EarthEngine earthengine.Computer
	StreetView  streetview.API
	Images      storage.ImageStore
	Repo        *repos.Repo
}

func OpenServices(ctx context.Context, cfg config.Config, env Env) (*Services, error) {
	c, err := cache.Open(cfg.Cache, env.RedisAddr)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Overpass: overpass.New(cfg.OSM.Overpass),
		Geocoder: nominatim.New(cfg.OSM.Nominatim),
	}

	if env.EEProject != "" {
		s.EarthEngine = earthengine.New(cfg.Data.Endpoint, env.EEProject, env.EEAccessToken, c)
	}

	if env.StreetViewKey != "" {
		s.StreetView = streetview.New(env.StreetViewKey, cfg.StreetView.Base, cfg.StreetView.MetaBase, c)
	}

	switch cfg.Storage.Kind {
	case "dir":
		s.Images = storage.NewDir(cfg.StreetView.LocalImageFolder)
	case "minio":
		if env.MinIOEndpoint == "" {
			return nil, fmt.Errorf("minio storage requires MINIO_ENDPOINT")
		}
		mc, err := minio.New(env.MinIOEndpoint, &minio.Options{
			Creds:  miniocredentials.NewStaticV4(env.MinIOAccessKey, env.MinIOSecretKey, ""),
			Secure: true,
		})
		if err != nil {
			return nil, err
		}
		publicURL := cfg.Storage.PublicURL
		if publicURL == "" {
			publicURL = "https://" + env.MinIOEndpoint
		}
		s.Images = storage.NewMinIO(mc, cfg.Storage.Bucket, cfg.StreetView.Place, publicURL)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}

	if env.DatabaseURL != "" {
		repo, err := repos.Connect(ctx, env.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		s.Repo = repo
	}

	return s, nil
}

func (s *Services) Close() {
	if s.Repo != nil {
		s.Repo.Close()
	}
}
