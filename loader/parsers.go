// Package loader turns files, object storage and SQL query results into
// table rows.
package loader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/metrico/tablepipe/model"
)

// batchSize bounds the rows carried by one ParserResponse.
const batchSize = 10000

type ParserFactory func() IParser

type IParser interface {
	ParseReader(ctx context.Context, r io.Reader) (chan *ParserResponse, error)
}

type ParserResponse struct {
	Rows  []model.Row
	Error error
}

var (
	registry = make(map[string]ParserFactory)
	regMtx   sync.RWMutex
)

func RegisterParser(name string, parser ParserFactory) {
	regMtx.Lock()
	defer regMtx.Unlock()
	registry[name] = parser
}

func GetParser(name string) (IParser, error) {
	regMtx.RLock()
	defer regMtx.RUnlock()
	parser, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("parser %s not found", name)
	}
	return parser(), nil
}

// FormatOf guesses the format of source from its extension.
func FormatOf(source string) string {
	switch strings.ToLower(path.Ext(source)) {
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".json":
		return "json"
	case ".parquet":
		return "parquet"
	case ".lp", ".line":
		return "lineproto"
	}
	return ""
}

// Collect drains res into one row slice and returns the first error.
func Collect(res chan *ParserResponse) ([]model.Row, error) {
	var (
		rows []model.Row
		err  error
	)
	for r := range res {
		if r.Error != nil {
			if err == nil {
				err = r.Error
			}
			continue
		}
		rows = append(rows, r.Rows...)
	}
	return rows, err
}

// sender batches rows onto a response channel.
type sender struct {
	ctx  context.Context
	res  chan *ParserResponse
	rows []model.Row
}

func newSender(ctx context.Context) *sender {
	return &sender{ctx: ctx, res: make(chan *ParserResponse)}
}

func (s *sender) send(r *ParserResponse) bool {
	select {
	case s.res <- r:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *sender) add(row model.Row) bool {
	s.rows = append(s.rows, row)
	if len(s.rows) < batchSize {
		return true
	}
	return s.flush()
}

func (s *sender) flush() bool {
	if len(s.rows) == 0 {
		return true
	}
	rows := s.rows
	s.rows = nil
	return s.send(&ParserResponse{Rows: rows})
}

func (s *sender) fail(err error) {
	s.send(&ParserResponse{Error: err})
}
