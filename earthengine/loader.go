package earthengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/paulmach/orb"

	"open-geo-engine/buildings"
	"open-geo-engine/config"
)

const defaultConcurrency = 8

type Computer interface {
	Compute(ctx context.Context, expr Expression) (json.RawMessage, error)
	Export(ctx context.Context, req ExportRequest) (string, error)
}

// Loader pulls band values of one image collection over one date range.
type Loader struct {
	Computer    Computer
	Collection  string
	Bands       []string
	Range       DateRange
	Scale       float64
	Folder      string
	ModelName   string
	Concurrency int
}

func NewLoader(c Computer, cfg config.DataConfig) (*Loader, error) {
	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	return &Loader{
		Computer:    c,
		Collection:  cfg.ImageCollection,
		Bands:       cfg.ImageBands,
		Range:       DateRange{Start: start, End: end},
		Scale:       cfg.Scale,
		Folder:      cfg.BaseFolder,
		ModelName:   cfg.ModelName,
		Concurrency: cfg.Concurrency,
	}, nil
}

type pointResult struct {
	samples []Sample
	err     error
}

// ForCentroids samples the collection at each building centroid. Samples
// keep the order of buildings. Individual failures are logged and skipped
// unless too many occur.
func (l *Loader) ForCentroids(ctx context.Context, found []buildings.Building) ([]Sample, error) {
	slog.Info("downloading satellite data", "model", l.ModelName, "centroids", len(found))

	concurrency := l.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]pointResult, len(found))
	done := make(chan struct{}, len(found))
	sem := make(chan struct{}, concurrency)
	started := 0
	for i, b := range found {
		select {
		case sem <- struct{}{}:
			started++
			go func(i int, p orb.Point) {
				defer func() { <-sem }()
				s, err := l.AtPoint(ctx, p)
				results[i] = pointResult{s, err}
				done <- struct{}{}
			}(i, b.Centroid)
		case <-ctx.Done():
			for ; started > 0; started-- {
				<-done
			}
			return nil, ctx.Err()
		}
	}
	for ; started > 0; started-- {
		<-done
	}

	var samples []Sample
	var errs []error
	for i, r := range results {
		if r.err != nil {
			slog.Warn("sampling failed", "building", found[i].Key(), "err", r.err)
			errs = append(errs, r.err)
			continue
		}
		samples = append(samples, r.samples...)
	}

	if len(errs) > min(10, len(found)/10) {
		return nil, fmt.Errorf("too many errors: %d/%d failed: %v", len(errs), len(found), errs)
	}
	return samples, nil
}

func (l *Loader) AtPoint(ctx context.Context, p orb.Point) ([]Sample, error) {
	expr := RegionExpression(l.Collection, l.Bands, l.Range, p, l.Scale)
	raw, err := l.Computer.Compute(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}
	arr, err := DecodeRegion(raw)
	if err != nil {
		return nil, err
	}
	return ArrayToSamples(arr, l.Bands)
}

// ExportCountries starts one export of the mean image per country and per
// weekly window of the date range. It returns the started operation names.
func (l *Loader) ExportCountries(ctx context.Context, countries []config.Country) ([]string, error) {
	windows := Windows(WeeklyDates(l.Range.Start, l.Range.End))

	var operations []string
	for _, country := range countries {
		slog.Info("executing data download", "country", country.Name, "windows", len(windows))
		for _, w := range windows {
			if ctx.Err() != nil {
				return operations, ctx.Err()
			}

			s, e := w.Start.Format("2006-01-02"), w.End.Format("2006-01-02")
			slog.Info("exporting", "model", l.ModelName, "country", country.Code, "start", s, "end", e)

			id, err := uuid.NewV4()
			if err != nil {
				return operations, err
			}
			description := fmt.Sprintf("%s_%s_%s", l.ModelName, s, e)
			op, err := l.Computer.Export(ctx, ExportRequest{
				Expression:  MeanImageExpression(l.Collection, l.Bands, w, country.Bound, l.Scale),
				Description: description,
				FileExportOptions: FileExportOptions{
					FileFormat: "GEO_TIFF",
					DriveDestination: DriveDestination{
						Folder:         l.Folder,
						FilenamePrefix: strings.ToLower(country.Code) + "_" + description,
					},
				},
				RequestID: id.String(),
			})
			if err != nil {
				return operations, fmt.Errorf("export %s %s: %w", country.Code, description, err)
			}
			operations = append(operations, op)
		}
	}
	return operations, nil
}
