package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/metrico/tablepipe/model"
)

// Load reads every row of the table described by t.
func Load(ctx context.Context, t model.TableConfig, opts Options) ([]model.Row, error) {
	if dsn, ok := strings.CutPrefix(t.Source, duckdbScheme); ok {
		rows, err := LoadSQL(ctx, dsn, t.Query)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		return rows, nil
	}
	format := t.Format
	if format == "" {
		format = FormatOf(t.Source)
	}
	if format == "" {
		return nil, fmt.Errorf("table %s: cannot tell the format of %q", t.Name, t.Source)
	}
	parser, err := GetParser(format)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	r, err := Open(ctx, t.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	res, err := parser.ParseReader(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	rows, err := Collect(res)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	return rows, nil
}
