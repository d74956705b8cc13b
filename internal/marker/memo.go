package marker

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"rivet/internal/actions"
	"rivet/internal/modgraph"
)

// minimal per-process cache by module identity + content hash
type cached struct {
	content modgraph.Digest
	actions *actions.ActionMap
}

// MemoStats counts cache activity.
type MemoStats struct {
	Hits     int64
	DiskHits int64
	Misses   int64
}

// Memo memoizes an Extractor by module identity so page pipelines sharing
// modules extract each one once per build. Concurrent callers for the same
// module share a single in-flight extraction. Failures are not cached.
//
// Returned ActionMaps are shared between callers and must not be modified.
type Memo struct {
	next    Extractor
	modules Modules
	disk    *DiskCache

	mu    sync.RWMutex
	byMod map[string]cached // key: module ident
	group singleflight.Group

	hits     atomic.Int64
	diskHits atomic.Int64
	misses   atomic.Int64
}

// NewMemo wraps next. disk may be nil.
func NewMemo(next Extractor, modules Modules, disk *DiskCache) *Memo {
	return &Memo{
		next:    next,
		modules: modules,
		disk:    disk,
		byMod:   make(map[string]cached, 256),
	}
}

func (m *Memo) get(ident string, content modgraph.Digest) (*actions.ActionMap, bool) {
	m.mu.RLock()
	rec, ok := m.byMod[ident]
	m.mu.RUnlock()
	if !ok || rec.content != content {
		return nil, false
	}
	return rec.actions, true
}

func (m *Memo) put(ident string, content modgraph.Digest, am *actions.ActionMap) {
	m.mu.Lock()
	m.byMod[ident] = cached{content: content, actions: am}
	m.mu.Unlock()
}

// Extract implements Extractor. The shared extraction is detached from the
// caller's cancellation: a cancelled caller returns ctx.Err() on its own while
// callers that joined the same flight still get the result.
func (m *Memo) Extract(ctx context.Context, id actions.ModuleID) (*actions.ActionMap, error) {
	ident := m.modules.Ident(id)
	content := m.modules.Fingerprint(id)
	if am, ok := m.get(ident, content); ok {
		m.hits.Add(1)
		return am, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(ident, func() (any, error) {
		if am, ok := m.get(ident, content); ok {
			m.hits.Add(1)
			return am, nil
		}
		if am, ok := m.fromDisk(content); ok {
			m.diskHits.Add(1)
			m.put(ident, content, am)
			return am, nil
		}
		m.misses.Add(1)
		am, err := m.next.Extract(shared, id)
		if err != nil {
			return nil, err
		}
		m.put(ident, content, am)
		m.toDisk(ident, content, am)
		return am, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		am, _ := res.Val.(*actions.ActionMap)
		return am, nil
	}
}

func (m *Memo) fromDisk(content modgraph.Digest) (*actions.ActionMap, bool) {
	if m.disk == nil || content == (modgraph.Digest{}) {
		return nil, false
	}
	var payload DiskPayload
	ok, err := m.disk.Get(content, &payload)
	if err != nil || !ok {
		return nil, false
	}
	return payloadToActions(&payload)
}

func (m *Memo) toDisk(ident string, content modgraph.Digest, am *actions.ActionMap) {
	if m.disk == nil || content == (modgraph.Digest{}) {
		return
	}
	// кэш на диске best effort: сборка не должна падать из-за него
	_ = m.disk.Put(content, actionsToPayload(ident, content, am))
}

// Stats returns a snapshot of the counters.
func (m *Memo) Stats() MemoStats {
	return MemoStats{
		Hits:     m.hits.Load(),
		DiskHits: m.diskHits.Load(),
		Misses:   m.misses.Load(),
	}
}
