package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-faster/jx"

	"github.com/metrico/tablepipe/model"
)

const maxLineSize = 16 * 1024 * 1024

// NDJSONParser reads one JSON object per line.
type NDJSONParser struct{}

func (n *NDJSONParser) ParseReader(ctx context.Context, r io.Reader) (chan *ParserResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	s := newSender(ctx)
	go func() {
		defer close(s.res)
		line := 0
		for scanner.Scan() {
			line++
			b := bytes.TrimSpace(scanner.Bytes())
			if len(b) == 0 {
				continue
			}
			row, err := parseLine(b)
			if err != nil {
				s.fail(fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !s.add(row) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.fail(err)
			return
		}
		s.flush()
	}()
	return s.res, nil
}

func parseLine(line []byte) (model.MapRow, error) {
	d := jx.DecodeBytes(line)
	if d.Next() != jx.Object {
		return nil, fmt.Errorf("not an object")
	}
	v, err := decodeValue(d)
	if err != nil {
		return nil, err
	}
	return model.MapRow(v.(map[string]any)), nil
}

// decodeValue reads any JSON value. Integral numbers become int64, other
// numbers float64.
func decodeValue(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		if n.IsInt() {
			if v, err := n.Int64(); err == nil {
				return v, nil
			}
		}
		return n.Float64()
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
		res := []any{}
		err := d.Arr(func(d *jx.Decoder) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			res = append(res, v)
			return nil
		})
		return res, err
	case jx.Object:
		res := map[string]any{}
		err := d.Obj(func(d *jx.Decoder, key string) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			res[key] = v
			return nil
		})
		return res, err
	}
	return nil, fmt.Errorf("unexpected json token")
}

var _ = func() int {
	RegisterParser("ndjson", func() IParser { return &NDJSONParser{} })
	return 0
}()
