// Package service builds table engines from their configuration.
package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/metrico/tablepipe/config"
	"github.com/metrico/tablepipe/loader"
	"github.com/metrico/tablepipe/logger"
	"github.com/metrico/tablepipe/model"
	"github.com/metrico/tablepipe/pipeline"
	"github.com/metrico/tablepipe/repository"
	"github.com/metrico/tablepipe/scheduler"
)

// Settings are the engine wide knobs shared by every table.
type Settings struct {
	RowCount     int
	Executor     string
	Workers      int
	FacetWorkers int
	Loader       loader.Options
}

// SettingsFromConfig reads Settings from the service configuration.
func SettingsFromConfig(c *config.Configuration) Settings {
	return Settings{
		RowCount:     c.Pipeline.RowCount,
		Executor:     c.Pipeline.Executor,
		Workers:      c.Pipeline.Workers,
		FacetWorkers: c.Pipeline.FacetWorkers,
		Loader: loader.Options{S3: loader.S3Config{
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Region:    c.S3.Region,
			Secure:    c.S3.Secure,
		}},
	}
}

// EngineOptions returns the pipeline options for a table called name.
func (s Settings) EngineOptions(name string) ([]pipeline.Option, error) {
	opts := []pipeline.Option{pipeline.WithName(name)}
	switch s.Executor {
	case "", "loop":
	case "pool":
		workers := s.Workers
		opts = append(opts, pipeline.WithExecutor(func(l *scheduler.Loop) scheduler.Executor {
			return scheduler.NewPoolExecutor(l, workers)
		}))
	default:
		return nil, fmt.Errorf("unknown executor %q", s.Executor)
	}
	if s.FacetWorkers > 0 {
		opts = append(opts, pipeline.WithFacetWorkers(s.FacetWorkers))
	}
	return opts, nil
}

// NewTable loads the rows of t and returns an engine over them. The engine
// has not been started.
func NewTable(ctx context.Context, t model.TableConfig, s Settings) (*pipeline.Engine, error) {
	def, err := config.Definition(t, s.RowCount)
	if err != nil {
		return nil, err
	}
	opts, err := s.EngineOptions(t.Name)
	if err != nil {
		return nil, err
	}
	rows, err := loader.Load(ctx, t, s.Loader)
	if err != nil {
		return nil, err
	}
	e := pipeline.New(def, opts...)
	e.SetRows(rows)
	logger.Info("table loaded", "table", t.Name, "rows", len(rows), "source", t.Source)
	return e, nil
}

// LoadTables loads every table of cfg concurrently, starts the engines
// and adds them to repo.
func LoadTables(ctx context.Context, repo *repository.TablesRepository, cfg *model.Config, s Settings) error {
	engines := make([]*pipeline.Engine, len(cfg.Tables))
	var g errgroup.Group
	g.SetLimit(4)
	for i, t := range cfg.Tables {
		g.Go(func() error {
			e, err := NewTable(ctx, t, s)
			if err != nil {
				return err
			}
			engines[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, e := range engines {
			if e != nil {
				e.Close()
			}
		}
		return err
	}
	for _, e := range engines {
		if err := repo.Add(e.Name(), e); err != nil {
			return err
		}
		e.Start(ctx)
	}
	return nil
}
