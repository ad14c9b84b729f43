package dataset

import (
	"sync"

	"github.com/cloudimpl/tsqcoord/internal/apperr"
)

// Catalog is the narrow seam onto the persistent metastore of dataset
// definitions (spec §1/§6, out of scope beyond this interface).
type Catalog interface {
	Register(ds *Dataset) error
	Get(ref Ref) (*Dataset, error)
	Delete(ref Ref) error
}

// MemCatalog is an in-memory Catalog used by tests and single-process
// deployments. Grounded on the create/get/delete metadata scenario in
// spec §8.1.
type MemCatalog struct {
	mu       sync.RWMutex
	datasets map[Ref]*Dataset
}

func NewMemCatalog() *MemCatalog {
	return &MemCatalog{datasets: make(map[Ref]*Dataset)}
}

// Register adds a new dataset. Returns BadArgument(AlreadyExists) if the
// ref is already registered.
func (c *MemCatalog) Register(ds *Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.datasets[ds.Ref]; exists {
		return apperr.BadArgument("AlreadyExists: dataset " + ds.Ref.String() + " already registered")
	}
	c.datasets[ds.Ref] = ds
	return nil
}

// Get returns the dataset for ref, or BadArgument(NotFound) if absent.
func (c *MemCatalog) Get(ref Ref) (*Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.datasets[ref]
	if !ok {
		return nil, apperr.BadArgument("NotFound: dataset " + ref.String())
	}
	return ds, nil
}

// Delete removes a dataset. Deleting a nonexistent dataset is a no-op
// success (idempotent), per the open question resolved in spec §9/DESIGN.md.
func (c *MemCatalog) Delete(ref Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.datasets, ref)
	return nil
}
