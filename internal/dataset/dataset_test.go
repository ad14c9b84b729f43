package dataset

import "testing"

func TestRefStringOmitsEmptyDB(t *testing.T) {
	if got := (Ref{Name: "metrics"}).String(); got != "metrics" {
		t.Fatalf("expected \"metrics\", got %q", got)
	}
	if got := (Ref{Name: "metrics", DB: "prod"}).String(); got != "prod.metrics" {
		t.Fatalf("expected \"prod.metrics\", got %q", got)
	}
}

func TestColumnByNameResolvesAtMostOneColumn(t *testing.T) {
	ds := &Dataset{Columns: []Column{
		{ID: 0, Name: "value", Type: ColDouble},
		{ID: 1, Name: "t", Type: ColTimestamp},
	}}
	col, ok := ds.ColumnByName("value")
	if !ok || col.ID != 0 {
		t.Fatalf("expected to resolve \"value\" to column 0, got %+v, %v", col, ok)
	}
	if _, ok := ds.ColumnByName("nope"); ok {
		t.Fatalf("expected no match for an unknown column name")
	}
}

func TestHasTimestampReflectsTimestampCol(t *testing.T) {
	ds := &Dataset{TimestampCol: "t"}
	if !ds.HasTimestamp() {
		t.Fatalf("expected HasTimestamp true when TimestampCol is set")
	}
	ds.TimestampCol = ""
	if ds.HasTimestamp() {
		t.Fatalf("expected HasTimestamp false when TimestampCol is empty")
	}
}
