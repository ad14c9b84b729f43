package codec

import (
	"bytes"
	"log/slog"

	"github.com/parquet-go/parquet-go"
)

// wireRow is a melted (column, index) -> value record used only by the
// self-check below; it lets one static schema cover any Result shape
// without reflecting over the aggregator's own column types.
type wireRow struct {
	Column   string  `parquet:"column"`
	Index    int32   `parquet:"index"`
	AsInt    int64   `parquet:"as_int"`
	AsFloat  float64 `parquet:"as_float"`
	AsString string  `parquet:"as_string,optional"`
}

func flatten(res Result) []wireRow {
	var rows []wireRow
	switch r := res.(type) {
	case TupleResult:
		for _, col := range r.Schema {
			rows = append(rows, wireRowFor(col.Name, 0, r.Values[col.Name]))
		}
	case VectorResult:
		for _, col := range r.Schema {
			vec := r.Columns[col.Name]
			for i := 0; i < vec.Len(); i++ {
				rows = append(rows, wireRowFor(col.Name, i, vectorElem(vec, i)))
			}
		}
	}
	return rows
}

func vectorElem(v Vector, i int) any {
	switch {
	case v.Int32s != nil:
		return v.Int32s[i]
	case v.Int64s != nil:
		return v.Int64s[i]
	case v.Doubles != nil:
		return v.Doubles[i]
	default:
		return v.Strings[i]
	}
}

func wireRowFor(column string, index int, v any) wireRow {
	row := wireRow{Column: column, Index: int32(index)}
	switch n := v.(type) {
	case int32:
		row.AsInt = int64(n)
	case int64:
		row.AsInt = n
	case float64:
		row.AsFloat = n
	case string:
		row.AsString = n
	}
	return row
}

// TestQuerySerialization implements the optional self-check of spec
// §4.7/config.QueryOptions.TestQuerySerialization: it encodes res to an
// in-memory parquet file and decodes it back, logging (never failing) on
// a row-count mismatch.
func TestQuerySerialization(res Result, log *slog.Logger) {
	rows := flatten(res)
	if len(rows) == 0 {
		return
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[wireRow](&buf)
	if _, err := w.Write(rows); err != nil {
		log.Warn("result serialization self-check: encode failed", "error", err)
		return
	}
	if err := w.Close(); err != nil {
		log.Warn("result serialization self-check: flush failed", "error", err)
		return
	}

	r := parquet.NewGenericReader[wireRow](bytes.NewReader(buf.Bytes()))
	defer r.Close()
	decoded := make([]wireRow, r.NumRows())
	n, err := r.Read(decoded)
	if err != nil && n != len(decoded) {
		log.Warn("result serialization self-check: decode failed", "error", err)
		return
	}
	if n != len(rows) {
		log.Warn("result serialization self-check: row count mismatch", "encoded", len(rows), "decoded", n)
		return
	}
	log.Debug("result serialization self-check passed", "rows", n)
}
