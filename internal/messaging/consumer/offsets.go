package consumer

import (
	"sort"
	"sync"
)

// offsetTracker decides which offset is safe to commit when messages of one
// partition complete out of order. Only the highest offset below which every
// fetched message is done gets committed.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64 // fetched, ascending
	done    map[int64]struct{}
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

// track registers a fetched offset. A fetch at or behind the newest tracked
// offset means the partition was rewound (rebalance), so its state resets.
func (t *offsetTracker) track(partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partition]
	if !ok || (len(p.pending) > 0 && offset <= p.pending[len(p.pending)-1]) {
		p = &partitionOffsets{done: make(map[int64]struct{})}
		t.partitions[partition] = p
	}
	p.pending = append(p.pending, offset)
}

// complete marks offset done and returns the offset to commit, if any
func (t *offsetTracker) complete(partition int, offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[partition]
	if !ok {
		return 0, false
	}
	i := sort.Search(len(p.pending), func(i int) bool { return p.pending[i] >= offset })
	if i == len(p.pending) || p.pending[i] != offset {
		return 0, false // stale completion from before a rewind
	}
	p.done[offset] = struct{}{}

	var (
		commit int64
		found  bool
	)
	for len(p.pending) > 0 {
		head := p.pending[0]
		if _, ok := p.done[head]; !ok {
			break
		}
		delete(p.done, head)
		p.pending = p.pending[1:]
		commit, found = head, true
	}
	return commit, found
}

// outstanding returns how many fetched offsets are not yet committable
func (t *offsetTracker) outstanding(partition int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.partitions[partition]; ok {
		return len(p.pending)
	}
	return 0
}
