package shardmap

// EventType is the kind of ShardEvent delivered by cluster membership.
type EventType int

const (
	EventAssigned EventType = iota
	EventActivated
	EventRecovering
	EventErrored
	EventStopped
)

// Event is a single shard state transition, as delivered by the cluster
// membership event stream (spec §6.2).
type Event struct {
	Shard ID
	Owner NodeAddress
	Type  EventType
}
