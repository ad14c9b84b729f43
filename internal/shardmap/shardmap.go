// Package shardmap tracks, per dataset, which node owns each shard and its
// health state (spec §3/§5). It is the authoritative, versioned snapshot
// the Validator resolves partitions against and the Engine scatters
// queries over.
package shardmap

import (
	"hash/fnv"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// ID identifies a shard within a dataset.
type ID uint32

// NodeAddress is the network address of the node owning a shard.
type NodeAddress string

// Status is a shard's health state. A shard has at most one Active owner
// at any time; only Active shards are considered by queries (spec §3).
type Status int

const (
	Unassigned Status = iota
	Assigned
	Active
	Recovering
	Error
	Stopped
)

func (s Status) String() string {
	switch s {
	case Unassigned:
		return "Unassigned"
	case Assigned:
		return "Assigned"
	case Active:
		return "Active"
	case Recovering:
		return "Recovering"
	case Error:
		return "Error"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Info is one shard's owner and status.
type Info struct {
	Owner  NodeAddress
	Status Status
}

// Snapshot is an immutable view of a dataset's shard map at a given
// revision. Readers (the Engine) take a reference at dispatch time;
// updates publish a new Snapshot rather than mutating in place (spec §5).
type Snapshot struct {
	Revision uint64
	ShardOf  map[ID]Info
	active   *roaring.Bitmap // shard ids currently Active; fast membership + set-algebra
}

func newSnapshot(revision uint64, shardOf map[ID]Info) *Snapshot {
	active := roaring.New()
	for id, info := range shardOf {
		if info.Status == Active {
			active.Add(uint32(id))
		}
	}
	return &Snapshot{Revision: revision, ShardOf: shardOf, active: active}
}

// IsActive reports whether id is Active in this snapshot.
func (s *Snapshot) IsActive(id ID) bool {
	return s.active.Contains(uint32(id))
}

// ActiveShards returns the sorted set of Active shard ids.
func (s *Snapshot) ActiveShards() []ID {
	out := make([]ID, 0, s.active.GetCardinality())
	it := s.active.Iterator()
	for it.HasNext() {
		out = append(out, ID(it.Next()))
	}
	return out
}

// clone copies the underlying map so a mutation produces a new Snapshot
// without touching the one outstanding readers may still hold.
func (s *Snapshot) clone() map[ID]Info {
	out := make(map[ID]Info, len(s.ShardOf))
	for k, v := range s.ShardOf {
		out[k] = v
	}
	return out
}

// Map is the process-wide, per-dataset shard map. It is mutated only by
// the owning QueryRouter's goroutine; everyone else reads a lock-free
// snapshot via Current (spec §5).
type Map struct {
	ptr atomic.Pointer[Snapshot]
}

// New creates an empty Map at revision 0 (the Initializing state — no
// shards assigned yet).
func New() *Map {
	m := &Map{}
	m.ptr.Store(newSnapshot(0, map[ID]Info{}))
	return m
}

// Current returns the latest published Snapshot.
func (m *Map) Current() *Snapshot {
	return m.ptr.Load()
}

// Replace installs candidate as the current snapshot if its revision is
// strictly newer than the one in place; stale updates are discarded
// (spec §3 "stale updates are discarded"). Returns true if applied.
func (m *Map) Replace(candidate *Snapshot) bool {
	for {
		cur := m.ptr.Load()
		if candidate.Revision <= cur.Revision {
			return false
		}
		if m.ptr.CompareAndSwap(cur, candidate) {
			return true
		}
	}
}

// Apply folds a single ShardEvent into the map, publishing a new snapshot
// at revision+1. Only the router goroutine should call this.
func (m *Map) Apply(ev Event) {
	cur := m.ptr.Load()
	next := cur.clone()
	info := next[ev.Shard]
	switch ev.Type {
	case EventAssigned:
		info.Owner = ev.Owner
		info.Status = Assigned
	case EventActivated:
		info.Owner = ev.Owner
		info.Status = Active
	case EventRecovering:
		info.Status = Recovering
	case EventErrored:
		info.Status = Error
	case EventStopped:
		info.Status = Stopped
	}
	next[ev.Shard] = info
	m.ptr.Store(newSnapshot(cur.Revision+1, next))
}

// HashPartitionKey resolves a partition key to a shard id via FNV-1a
// modulo shardCount, matching the consistent-hashing idiom used for
// partition→shard routing across the reference corpus.
func HashPartitionKey(key string, shardCount int) ID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return ID(h.Sum32() % uint32(shardCount))
}
