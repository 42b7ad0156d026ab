// Package streetview downloads Street View imagery for sampled locations and
// joins links and metadata back onto the samples.
package streetview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"open-geo-engine/storage"
	"open-geo-engine/table"
)

const (
	LinksFile    = "streetview_links.txt"
	MetadataFile = "streetview_metadata.json"

	defaultConcurrency = 8
)

type API interface {
	ImageURL(loc string, p ImageParams, withKey bool) string
	Metadata(ctx context.Context, loc string) (Metadata, error)
	Download(ctx context.Context, loc string, p ImageParams) (io.ReadCloser, error)
}

// Columns added to the samples table.
var Columns = []string{"URL", "pano_id", "streetview_status", "streetview_date", "image_path"}

type Fetcher struct {
	API            API
	Store          storage.ImageStore
	Params         ImageParams
	LinksFolder    string
	MetadataFolder string
	Concurrency    int
}

// LocationKey formats a location the way the Street View API expects it,
// keeping the coordinates exactly as written in the table.
func LocationKey(row table.Row) string {
	return row["latitude"] + "," + row["longitude"]
}

// UniqueLocations returns the distinct locations of t in first-seen order.
// Rows missing a coordinate are skipped.
func UniqueLocations(t *table.Table) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		if row["latitude"] == "" || row["longitude"] == "" {
			continue
		}
		loc := LocationKey(row)
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out
}

func LocationString(locs []string) string {
	return strings.Join(locs, ";")
}

type fetchResult struct {
	meta      Metadata
	imagePath string
	err       error
}

// Execute fetches metadata and imagery for every unique location of samples
// and returns samples with the Street View columns joined on. It fails if
// more than a quarter of the locations fail.
func (f *Fetcher) Execute(ctx context.Context, samples *table.Table) (*table.Table, error) {
	locs := UniqueLocations(samples)
	slog.Info("fetching streetview", "locations", len(locs))

	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]fetchResult, len(locs))
	sem := make(chan struct{}, concurrency)
	done := make(chan struct{}, len(locs))
	for i, loc := range locs {
		sem <- struct{}{}
		go func(i int, loc string) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			meta, path, err := f.fetch(ctx, i, loc)
			results[i] = fetchResult{meta, path, err}
		}(i, loc)
	}
	for range locs {
		<-done
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var errs []error
	for i, r := range results {
		if r.err != nil {
			slog.Warn("streetview fetch failed", "location", locs[i], "err", r.err)
			errs = append(errs, r.err)
		}
	}
	if len(errs) > len(locs)/4 {
		return nil, fmt.Errorf("too many errors: %d/%d failed: %v", len(errs), len(locs), errs)
	}

	if err := f.saveLinks(locs); err != nil {
		return nil, err
	}
	if err := f.saveMetadata(results); err != nil {
		return nil, err
	}

	byLoc := make(map[string]fetchResult, len(locs))
	for i, loc := range locs {
		byLoc[loc] = results[i]
	}
	return f.join(samples, byLoc), nil
}

func (f *Fetcher) fetch(ctx context.Context, i int, loc string) (Metadata, string, error) {
	meta, err := f.API.Metadata(ctx, loc)
	if err != nil {
		return Metadata{Location: loc}, "", fmt.Errorf("metadata: %w", err)
	}
	if !meta.HasImagery() {
		slog.Debug("no streetview imagery", "location", loc, "status", meta.Status)
		return meta, "", nil
	}

	body, err := f.API.Download(ctx, loc, f.Params)
	if err != nil {
		return meta, "", fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "gsv-*.jpg")
	if err != nil {
		return meta, "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			slog.Warn("remove temp file", "err", err)
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return meta, "", fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return meta, "", err
	}

	path, err := f.Store.Put(ctx, fmt.Sprintf("gsv_%d.jpg", i), tmp.Name())
	if err != nil {
		return meta, "", err
	}
	return meta, path, nil
}

func (f *Fetcher) saveLinks(locs []string) error {
	var b strings.Builder
	for _, loc := range locs {
		b.WriteString(f.API.ImageURL(loc, f.Params, false))
		b.WriteByte('\n')
	}
	return writeFile(filepath.Join(f.LinksFolder, LinksFile), []byte(b.String()))
}

func (f *Fetcher) saveMetadata(results []fetchResult) error {
	metas := make([]Metadata, len(results))
	for i, r := range results {
		metas[i] = r.meta
	}
	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(f.MetadataFolder, MetadataFile), data)
}

func (f *Fetcher) join(samples *table.Table, byLoc map[string]fetchResult) *table.Table {
	out := table.New(append([]string(nil), samples.Columns...)...)
	for _, c := range Columns {
		out.AddColumn(c)
	}

	for _, row := range samples.Rows {
		joined := make(table.Row, len(row)+len(Columns))
		for k, v := range row {
			joined[k] = v
		}

		r, ok := byLoc[LocationKey(row)]
		if ok && r.err == nil {
			joined["streetview_status"] = r.meta.Status
			if r.meta.HasImagery() {
				joined["URL"] = f.API.ImageURL(LocationKey(row), f.Params, false)
				joined["pano_id"] = r.meta.PanoID
				joined["streetview_date"] = r.meta.Date
				joined["image_path"] = r.imagePath
			}
		}
		out.Append(joined)
	}
	return out
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
