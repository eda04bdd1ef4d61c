package loader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrico/tablepipe/model"
)

func parse(t *testing.T, format, input string) ([]model.Row, error) {
	t.Helper()
	p, err := GetParser(format)
	require.NoError(t, err)
	res, err := p.ParseReader(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	return Collect(res)
}

func TestNDJSON(t *testing.T) {
	rows, err := parse(t, "ndjson", `{"name":"ada","age":36,"score":1.5,"ok":true,"org":{"team":"core"},"tags":["a",null]}

{"name":"bob","age":null}
`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0].Get("name"))
	assert.Equal(t, int64(36), rows[0].Get("age"))
	assert.Equal(t, 1.5, rows[0].Get("score"))
	assert.Equal(t, true, rows[0].Get("ok"))
	assert.Equal(t, "core", rows[0].Get("org.team"))
	assert.Equal(t, []any{"a", nil}, rows[0].Get("tags"))
	assert.Nil(t, rows[1].Get("age"))

	_, err = parse(t, "ndjson", "{\"a\":1}\n[1,2]\n")
	assert.ErrorContains(t, err, "line 2")
	_, err = parse(t, "ndjson", "{\"a\":\n")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	rows, err := parse(t, "json", `[{"name":"ada","age":36},{"name":"bob","org":{"team":"ops"}}]`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(36), rows[0].Get("age"))
	assert.Equal(t, "ops", rows[1].Get("org.team"))

	rows, err = parse(t, "json", `{"name":"solo"}`)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = parse(t, "json", `[{"a":1}, 2]`)
	assert.Error(t, err)
	_, err = parse(t, "json", `"text"`)
	assert.Error(t, err)
}

func TestLineProto(t *testing.T) {
	rows, err := parse(t, "lineproto", "cpu,host=a usage=0.5,cores=4i 1700000000000000000\n"+
		"mem,host=b free=10i 1700000001000000000\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cpu", rows[0].Get("measurement"))
	assert.Equal(t, "a", rows[0].Get("host"))
	assert.Equal(t, 0.5, rows[0].Get("usage"))
	assert.Equal(t, int64(4), rows[0].Get("cores"))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rows[0].Get("time"))

	p, err := GetParser("lineproto")
	require.NoError(t, err)
	res, err := p.ParseReader(WithPrecision(context.Background(), "s"), strings.NewReader("cpu v=1 1700000000\n"))
	require.NoError(t, err)
	rows, err = Collect(res)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rows[0].Get("time"))

	_, err = parse(t, "lineproto", "not line protocol\n")
	assert.Error(t, err)
}

func writeParquet(t *testing.T) []byte {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"ada", "bob"}, nil)
	b.Field(1).(*array.Int64Builder).AppendValues([]int64{36, 0}, []bool{true, false})
	record := b.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf, parquet.NewWriterProperties(), pqarrow.NewArrowWriterProperties())
	require.NoError(t, err)
	require.NoError(t, writer.Write(record))
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestParquet(t *testing.T) {
	rows, err := parse(t, "parquet", string(writeParquet(t)))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0].Get("name"))
	assert.Equal(t, int64(36), rows[0].Get("age"))
	assert.Nil(t, rows[1].Get("age"))

	p, _ := GetParser("parquet")
	_, err = p.ParseReader(context.Background(), strings.NewReader("not parquet"))
	assert.Error(t, err)
}

func TestLoadFileAndStdin(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "people.ndjson")
	require.NoError(t, os.WriteFile(file, []byte("{\"name\":\"ada\"}\n{\"name\":\"bob\"}\n"), 0o644))

	rows, err := Load(context.Background(), model.TableConfig{Name: "people", Source: file}, Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = Load(context.Background(), model.TableConfig{Name: "in", Source: "-", Format: "json"},
		Options{Stdin: strings.NewReader(`[{"a":1}]`)})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = Load(context.Background(), model.TableConfig{Name: "x", Source: filepath.Join(dir, "x.csv")}, Options{})
	assert.ErrorContains(t, err, "cannot tell the format")
	_, err = Load(context.Background(), model.TableConfig{Name: "x", Source: filepath.Join(dir, "missing.json")}, Options{})
	assert.Error(t, err)
}

func TestS3Source(t *testing.T) {
	bucket, key, err := parseS3URL("s3://data/tables/people.parquet")
	require.NoError(t, err)
	assert.Equal(t, "data", bucket)
	assert.Equal(t, "tables/people.parquet", key)
	_, _, err = parseS3URL("s3://data")
	assert.Error(t, err)

	_, err = Open(context.Background(), "s3://data/people.json", Options{})
	assert.ErrorIs(t, err, ErrNoS3Endpoint)
}

func TestLoadSQL(t *testing.T) {
	rows, err := Load(context.Background(), model.TableConfig{
		Name:   "numbers",
		Source: "duckdb://",
		Query:  "SELECT i AS n, 'row ' || i AS label FROM range(3) t(i)",
	}, Options{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(2), rows[2].Get("n"))
	assert.Equal(t, "row 2", rows[2].Get("label"))

	_, err = LoadSQL(context.Background(), "", "")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "ndjson", FormatOf("a/b.JSONL"))
	assert.Equal(t, "parquet", FormatOf("s3://b/k.parquet"))
	assert.Equal(t, "lineproto", FormatOf("cpu.lp"))
	assert.Equal(t, "", FormatOf("data.csv"))
}
