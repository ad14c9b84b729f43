// Package membership implements the coordinator's two cluster-membership
// collaborators (spec §6.2): a seeds bootstrap fetch over plain net/http,
// and an in-process Bus fanning ShardEvent/CurrentShardSnapshot updates
// out to every subscribing Router. Grounded on
// arkiliandb-Arkilian/internal/api/http's plain-net/http idiom (no
// router/web-framework dependency for a single GET) for the client side,
// and on arkiliandb-Arkilian/internal/router/notifier.go's
// subscriber/publish bus, generalized from write-visibility
// notifications to shard-map updates.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cloudimpl/tsqcoord/internal/shardmap"
)

// seedsResponse is the JSON shape of the seeds endpoint (spec §6.2).
type seedsResponse struct {
	Members []string `json:"members"`
}

// FetchSeeds performs one GET against seedsPath and returns the member
// addresses, sorted lexicographically per spec. An empty member list is
// not an error — it means no cluster has formed yet.
func FetchSeeds(ctx context.Context, client *http.Client, seedsPath string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seedsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("membership: building seeds request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("membership: fetching seeds: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("membership: seeds endpoint returned %s", resp.Status)
	}

	var body seedsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("membership: decoding seeds response: %w", err)
	}

	members := append([]string(nil), body.Members...)
	sort.Strings(members)
	return members, nil
}

// WaitForSeeds polls FetchSeeds until it returns a non-empty member list
// or timeout elapses, per clusterMembershipTimeoutSecs (spec §6.5).
func WaitForSeeds(ctx context.Context, client *http.Client, seedsPath string, timeout time.Duration, pollInterval time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		members, err := FetchSeeds(ctx, client, seedsPath)
		if err != nil {
			return nil, err
		}
		if len(members) > 0 {
			return members, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("membership: no cluster formed within %s", timeout)
		case <-time.After(pollInterval):
		}
	}
}

// Update is the sum type a Bus subscriber receives: either a single
// ShardEvent to fold in, or a full snapshot refresh to install if newer.
type Update interface{ update() }

// EventUpdate wraps one ShardEvent.
type EventUpdate struct{ Event shardmap.Event }

// SnapshotUpdate wraps a periodic full ShardMap refresh.
type SnapshotUpdate struct{ Snapshot *shardmap.Snapshot }

func (EventUpdate) update()    {}
func (SnapshotUpdate) update() {}

// Bus is an in-process pub/sub fanning membership Updates out to every
// subscribing Router. Publish is non-blocking: a full subscriber channel
// drops the update rather than stalling the publisher, matching the
// teacher's write-visibility notifier (a Router that misses an update
// catches up on the next periodic SnapshotUpdate).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Update
	bufferSize  int
}

func NewBus(bufferSize int) *Bus {
	return &Bus{subscribers: make(map[string]chan Update), bufferSize: bufferSize}
}

// Subscribe registers id for updates and returns its delivery channel.
// Unsubscribe must be called to release it.
func (b *Bus) Subscribe(id string) <-chan Update {
	ch := make(chan Update, b.bufferSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}
