// Package dataset defines the coordinator's view of dataset metadata
// (spec §3) and the metastore seam it is read through (spec §6, external
// collaborator — the persistent metastore itself is out of scope).
package dataset

import "fmt"

// Ref is a stable identifier the ShardMap and metastore key on.
type Ref struct {
	Name string
	DB   string // optional database/namespace tag; "" means the default.
}

func (r Ref) String() string {
	if r.DB == "" {
		return r.Name
	}
	return fmt.Sprintf("%s.%s", r.DB, r.Name)
}

// ColumnType is one of the scalar/column kinds a Dataset column can hold.
type ColumnType int

const (
	ColInt ColumnType = iota
	ColLong
	ColDouble
	ColTimestamp
	ColString
	ColHistogram
)

func (t ColumnType) String() string {
	switch t {
	case ColInt:
		return "Int"
	case ColLong:
		return "Long"
	case ColDouble:
		return "Double"
	case ColTimestamp:
		return "Timestamp"
	case ColString:
		return "String"
	case ColHistogram:
		return "Histogram"
	default:
		return "Unknown"
	}
}

// Column is one column of a Dataset. IDs are dense and unique within a
// dataset; a name resolves to at most one ID (spec §3 invariant).
type Column struct {
	Name string
	Type ColumnType
	ID   int
}

// Dataset is immutable once loaded; any mutation requires registering a
// new Ref (spec §3).
type Dataset struct {
	Ref           Ref
	Columns       []Column
	PartitionKey  string // name of the column used as the partition key
	RowKeyColumns []string
	TimestampCol  string // "" if the dataset has no timestamp column
}

// ColumnByName resolves a column name to its definition, or false if unknown.
func (d *Dataset) ColumnByName(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasTimestamp reports whether the dataset has a timestamp column.
func (d *Dataset) HasTimestamp() bool {
	return d.TimestampCol != ""
}
