package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/influxdata/influxdb/models"

	"github.com/metrico/tablepipe/model"
)

type precisionKey struct{}

// WithPrecision sets the timestamp precision of line protocol input, "ns"
// by default.
func WithPrecision(ctx context.Context, precision string) context.Context {
	return context.WithValue(ctx, precisionKey{}, precision)
}

// LineProtoParser reads InfluxDB line protocol. Every point becomes a row
// holding the measurement, its tags, its fields and its time.
type LineProtoParser struct{}

func (l *LineProtoParser) ParseReader(ctx context.Context, r io.Reader) (chan *ParserResponse, error) {
	precision := "ns"
	if p, ok := ctx.Value(precisionKey{}).(string); ok && p != "" {
		precision = p
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	s := newSender(ctx)
	go l.parse(scanner, s, precision)
	return s.res, nil
}

func (l *LineProtoParser) parse(scanner *bufio.Scanner, s *sender, precision string) {
	defer close(s.res)
	for scanner.Scan() {
		points, err := models.ParsePointsWithPrecision(scanner.Bytes(), time.Now().UTC(), precision)
		if err != nil {
			s.fail(fmt.Errorf("error parsing line: %w", err))
			return
		}
		for _, p := range points {
			row, err := pointRow(p)
			if err != nil {
				s.fail(err)
				return
			}
			if !s.add(row) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.fail(err)
		return
	}
	s.flush()
}

func pointRow(p models.Point) (model.MapRow, error) {
	fields, err := p.Fields()
	if err != nil {
		return nil, fmt.Errorf("error getting fields: %w", err)
	}
	row := make(model.MapRow, len(fields)+len(p.Tags())+2)
	for _, t := range p.Tags() {
		row[string(t.Key)] = string(t.Value)
	}
	for k, v := range fields {
		row[k] = v
	}
	row["measurement"] = string(p.Name())
	row["time"] = p.Time().UTC()
	return row, nil
}

var _ = func() int {
	RegisterParser("lineproto", func() IParser { return &LineProtoParser{} })
	return 0
}()
