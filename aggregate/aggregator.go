package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"open-geo-engine/config"
	"open-geo-engine/table"
)

type Aggregator struct {
	InputDir     string
	DescribedDir string
	Aggregations []Aggregation
	Concurrency  int
}

func New(cfg config.AggregatorConfig) (*Aggregator, error) {
	aggs := make([]Aggregation, 0, len(cfg.TimeAggregations))
	for _, s := range cfg.TimeAggregations {
		agg, err := ParseAggregation(s)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return &Aggregator{
		InputDir:     cfg.InputDir,
		DescribedDir: cfg.DescribedDir,
		Aggregations: aggs,
	}, nil
}

type fileJob struct {
	agg  Aggregation
	name string
}

// Execute aggregates every CSV in <input>/<aggregation>/ into
// <described>/<aggregation>/ and returns the written paths. Any failing file
// fails the run.
func (a *Aggregator) Execute(ctx context.Context) ([]string, error) {
	var jobs []fileJob
	for _, agg := range a.Aggregations {
		names, err := table.ListCSV(filepath.Join(a.InputDir, string(agg)))
		if err != nil {
			return nil, fmt.Errorf("list %s input: %w", agg, err)
		}
		for _, name := range names {
			jobs = append(jobs, fileJob{agg, name})
		}
	}
	slog.Info("aggregating satellite files", "files", len(jobs))

	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	outPaths := make([]string, len(jobs))
	errs := make([]error, len(jobs))
	sem := make(chan struct{}, concurrency)
	done := make(chan struct{}, len(jobs))
	for i, job := range jobs {
		sem <- struct{}{}
		go func(i int, job fileJob) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			outPaths[i], errs[i] = a.executeForFile(job)
		}(i, job)
	}
	for range jobs {
		<-done
	}

	var result *multierror.Error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s/%s: %w", jobs[i].agg, jobs[i].name, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return outPaths, nil
}

func (a *Aggregator) executeForFile(job fileJob) (string, error) {
	in, err := table.ReadCSV(filepath.Join(a.InputDir, string(job.agg), job.name))
	if err != nil {
		return "", err
	}

	out, err := Aggregate(in, job.agg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(a.DescribedDir, string(job.agg), table.Stem(job.name)+".csv")
	if err := table.WriteCSV(path, out); err != nil {
		return "", err
	}
	slog.Debug("aggregated", "file", job.name, "aggregation", job.agg, "rows", in.Len(), "groups", out.Len())
	return path, nil
}
