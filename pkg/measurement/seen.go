package measurement

import "sync"

const seenShards = 64

type seenKey struct {
	dir string
	id  StatementID
}

// seenSet is the process-wide record of (dataDir, id) pairs already
// written. Shards are picked by id so hot lookups from different
// goroutines rarely share a lock, and lookups never allocate.
type seenSet struct {
	shards [seenShards]seenShard
}

type seenShard struct {
	mu  sync.RWMutex
	ids map[seenKey]struct{}
}

func (s *seenSet) shard(id StatementID) *seenShard {
	return &s.shards[uint(id)%seenShards]
}

func (s *seenSet) contains(dir string, id StatementID) bool {
	sh := s.shard(id)
	sh.mu.RLock()
	_, ok := sh.ids[seenKey{dir: dir, id: id}]
	sh.mu.RUnlock()
	return ok
}

// add marks the pair as written. Adding twice is harmless.
func (s *seenSet) add(dir string, id StatementID) {
	sh := s.shard(id)
	sh.mu.Lock()
	if sh.ids == nil {
		sh.ids = make(map[seenKey]struct{})
	}
	sh.ids[seenKey{dir: dir, id: id}] = struct{}{}
	sh.mu.Unlock()
}

func (s *seenSet) len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.ids)
		sh.mu.RUnlock()
	}
	return n
}
