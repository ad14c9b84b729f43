package dataset

import (
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/apperr"
)

func TestMemCatalogRegisterThenGetRoundTrips(t *testing.T) {
	c := NewMemCatalog()
	ds := &Dataset{Ref: Ref{Name: "metrics"}}
	if err := c.Register(ds); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := c.Get(ds.Ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != ds {
		t.Fatalf("expected Get to return the same *Dataset that was registered")
	}
}

func TestMemCatalogRegisterRejectsDuplicateRef(t *testing.T) {
	c := NewMemCatalog()
	ref := Ref{Name: "metrics"}
	if err := c.Register(&Dataset{Ref: ref}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := c.Register(&Dataset{Ref: ref})
	if err == nil {
		t.Fatalf("expected an error registering a duplicate ref")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindBadArgument {
		t.Fatalf("expected BadArgument, got %v", err)
	}
}

func TestMemCatalogGetUnknownRefFails(t *testing.T) {
	c := NewMemCatalog()
	if _, err := c.Get(Ref{Name: "nope"}); err == nil {
		t.Fatalf("expected an error for an unregistered ref")
	}
}

func TestMemCatalogDeleteIsIdempotent(t *testing.T) {
	c := NewMemCatalog()
	ref := Ref{Name: "metrics"}
	_ = c.Register(&Dataset{Ref: ref})
	if err := c.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ref); err != nil {
		t.Fatalf("expected deleting an already-absent ref to succeed, got %v", err)
	}
	if _, err := c.Get(ref); err == nil {
		t.Fatalf("expected Get to fail after Delete")
	}
}
