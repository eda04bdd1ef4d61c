package loader

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/tablepipe/model"
)

// JSONParser reads a JSON array of objects, or a single object.
type JSONParser struct{}

func (j *JSONParser) ParseReader(ctx context.Context, r io.Reader) (chan *ParserResponse, error) {
	iter := jsoniter.Parse(jsoniter.ConfigCompatibleWithStandardLibrary, r, 64*1024)
	s := newSender(ctx)
	go func() {
		defer close(s.res)
		switch iter.WhatIsNext() {
		case jsoniter.ArrayValue:
			n := 0
			iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
				n++
				m, ok := it.Read().(map[string]any)
				if it.Error != nil {
					return false
				}
				if !ok {
					it.ReportError("read row", fmt.Sprintf("element %d is not an object", n))
					return false
				}
				return s.add(model.MapRow(m))
			})
		case jsoniter.ObjectValue:
			if m, ok := iter.Read().(map[string]any); ok {
				s.add(model.MapRow(m))
			}
		default:
			if iter.Error == nil {
				iter.ReportError("read rows", "expected an array of objects")
			}
		}
		if iter.Error != nil && iter.Error != io.EOF {
			s.fail(iter.Error)
			return
		}
		s.flush()
	}()
	return s.res, nil
}

var _ = func() int {
	RegisterParser("json", func() IParser { return &JSONParser{} })
	return 0
}()
