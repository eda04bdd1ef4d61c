package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/metrico/tablepipe/model"
)

// ParquetParser reads parquet files. Parquet needs random access, the
// input is buffered in memory first.
type ParquetParser struct{}

func (p *ParquetParser) ParseReader(ctx context.Context, r io.Reader) (chan *ParserResponse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batchSize}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	s := newSender(ctx)
	go func() {
		defer close(s.res)
		defer pf.Close()
		tbl, err := fr.ReadTable(ctx)
		if err != nil {
			s.fail(fmt.Errorf("read parquet: %w", err))
			return
		}
		defer tbl.Release()
		tr := array.NewTableReader(tbl, batchSize)
		defer tr.Release()
		for tr.Next() {
			rec := tr.Record()
			schema := rec.Schema()
			for i := 0; i < int(rec.NumRows()); i++ {
				row := make(model.MapRow, rec.NumCols())
				for c := 0; c < int(rec.NumCols()); c++ {
					col := rec.Column(c)
					if col.IsNull(i) {
						row[schema.Field(c).Name] = nil
						continue
					}
					row[schema.Field(c).Name] = col.GetOneForMarshal(i)
				}
				if !s.add(row) {
					return
				}
			}
		}
		s.flush()
	}()
	return s.res, nil
}

var _ = func() int {
	RegisterParser("parquet", func() IParser { return &ParquetParser{} })
	return 0
}()
