// Package codec implements the ResultCodec of spec §4.6: it packs
// Aggregates (and raw scanned rows, for the non-aggregate plan paths)
// into the TupleResult/VectorResult wire shape of spec §6.4.
package codec

import (
	"fmt"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
)

// ColumnSpec is one column of a Result's schema.
type ColumnSpec struct {
	Name string
	Type dataset.ColumnType
}

// Result is the wire shape returned to clients: either a single-record
// TupleResult or a column-oriented VectorResult (spec §6.4).
type Result interface{ result() }

// TupleResult is a binary record whose field layout matches Schema.
type TupleResult struct {
	Schema []ColumnSpec
	Values map[string]any
}

// Vector is a typed column vector; exactly one of the slices is
// populated, per the column's ColumnType and width.
type Vector struct {
	Int32s  []int32
	Int64s  []int64
	Doubles []float64
	Strings []string
}

func (v Vector) Len() int {
	switch {
	case v.Int32s != nil:
		return len(v.Int32s)
	case v.Int64s != nil:
		return len(v.Int64s)
	case v.Doubles != nil:
		return len(v.Doubles)
	default:
		return len(v.Strings)
	}
}

// VectorResult wraps one or more typed column vectors of equal length.
type VectorResult struct {
	Schema  []ColumnSpec
	Columns map[string]Vector
}

func (TupleResult) result()  {}
func (VectorResult) result() {}

// EncodeAggregate implements the Aggregate -> QueryResult mapping table
// of spec §4.6.
func EncodeAggregate(agg aggregate.Aggregate) (Result, error) {
	switch agg.Class {
	case aggregate.ClassHistogram:
		return VectorResult{
			Schema: []ColumnSpec{{Name: "counts", Type: dataset.ColLong}, {Name: "bucketMax", Type: dataset.ColDouble}},
			Columns: map[string]Vector{
				"counts":    {Int64s: agg.Counts},
				"bucketMax": {Doubles: agg.BucketMax},
			},
		}, nil

	case aggregate.ClassInt, aggregate.ClassLong, aggregate.ClassDouble:
		colType := numericColumnType(agg.Class, agg.Wide)
		if agg.Cardinality == 1 {
			value, err := scalarValue(agg, colType)
			if err != nil {
				return nil, err
			}
			return TupleResult{
				Schema: []ColumnSpec{{Name: "result", Type: colType}},
				Values: map[string]any{"result": value},
			}, nil
		}
		vec, err := resultVector(agg, colType)
		if err != nil {
			return nil, err
		}
		return VectorResult{
			Schema:  []ColumnSpec{{Name: "result", Type: colType}},
			Columns: map[string]Vector{"result": vec},
		}, nil

	default:
		return nil, fmt.Errorf("codec: unrecognized result class %v", agg.Class)
	}
}

func numericColumnType(class aggregate.ResultClass, wide bool) dataset.ColumnType {
	switch class {
	case aggregate.ClassDouble:
		return dataset.ColDouble
	default:
		if wide {
			return dataset.ColLong
		}
		return dataset.ColInt
	}
}

func scalarValue(agg aggregate.Aggregate, colType dataset.ColumnType) (any, error) {
	switch colType {
	case dataset.ColDouble:
		if len(agg.Doubles) == 0 {
			return nil, fmt.Errorf("codec: double aggregate has no value")
		}
		return agg.Doubles[0], nil
	case dataset.ColLong:
		if len(agg.Ints) == 0 {
			return nil, fmt.Errorf("codec: long aggregate has no value")
		}
		return agg.Ints[0], nil
	default:
		if len(agg.Ints) == 0 {
			return nil, fmt.Errorf("codec: int aggregate has no value")
		}
		return int32(agg.Ints[0]), nil
	}
}

func resultVector(agg aggregate.Aggregate, colType dataset.ColumnType) (Vector, error) {
	switch colType {
	case dataset.ColDouble:
		return Vector{Doubles: agg.Doubles}, nil
	case dataset.ColLong:
		return Vector{Int64s: agg.Ints}, nil
	default:
		ints := make([]int32, len(agg.Ints))
		for i, v := range agg.Ints {
			ints[i] = int32(v)
		}
		return Vector{Int32s: ints}, nil
	}
}

// BuildTupleResult packs a single row (column ID -> value) into a
// TupleResult, for the StreamLastTuple plan path.
func BuildTupleResult(cols []dataset.Column, values map[int]any) TupleResult {
	schema := make([]ColumnSpec, len(cols))
	out := make(map[string]any, len(cols))
	for i, c := range cols {
		schema[i] = ColumnSpec{Name: c.Name, Type: c.Type}
		out[c.Name] = values[c.ID]
	}
	return TupleResult{Schema: schema, Values: out}
}

// BuildVectorResult packs N rows into column vectors, for the
// LocalVectorReader plan path. Rows are assumed already in the Engine's
// deterministic concatenation order.
func BuildVectorResult(cols []dataset.Column, rows []map[int]any) VectorResult {
	schema := make([]ColumnSpec, len(cols))
	columns := make(map[string]Vector, len(cols))
	for i, c := range cols {
		schema[i] = ColumnSpec{Name: c.Name, Type: c.Type}
		columns[c.Name] = buildColumnVector(c, rows)
	}
	return VectorResult{Schema: schema, Columns: columns}
}

func buildColumnVector(c dataset.Column, rows []map[int]any) Vector {
	switch c.Type {
	case dataset.ColDouble:
		v := make([]float64, len(rows))
		for i, r := range rows {
			v[i], _ = toFloat64(r[c.ID])
		}
		return Vector{Doubles: v}
	case dataset.ColLong, dataset.ColTimestamp:
		v := make([]int64, len(rows))
		for i, r := range rows {
			v[i], _ = toInt64(r[c.ID])
		}
		return Vector{Int64s: v}
	case dataset.ColInt:
		v := make([]int32, len(rows))
		for i, r := range rows {
			n, _ := toInt64(r[c.ID])
			v[i] = int32(n)
		}
		return Vector{Int32s: v}
	default:
		v := make([]string, len(rows))
		for i, r := range rows {
			if s, ok := r[c.ID].(string); ok {
				v[i] = s
			}
		}
		return Vector{Strings: v}
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
