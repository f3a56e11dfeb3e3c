package queue

import (
	"container/list"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	batches map[world.ChunkKey]*Batch
}

// pending maps chunk keys to their live batch and keeps those batches in
// FIFO order. A batch is in the list exactly when its key maps to it.
//
// Locks are always taken shard first, then orderMu.
type pending struct {
	shards [shardCount]shard

	orderMu sync.Mutex
	order   list.List

	size atomic.Int64
}

func newPending() *pending {
	p := &pending{}
	for i := range p.shards {
		p.shards[i].batches = make(map[world.ChunkKey]*Batch)
	}
	return p
}

func (p *pending) shard(k world.ChunkKey) *shard {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return &p.shards[xxhash.Sum64(buf[:])%shardCount]
}

// get returns the live batch for k, or nil.
func (p *pending) get(k world.ChunkKey) *Batch {
	s := p.shard(k)
	s.mu.RLock()
	b := s.batches[k]
	s.mu.RUnlock()
	return b
}

// getOrCreate returns the live batch for pos, creating and enqueueing one if
// there is none. n is the pending count after the enqueue, or 0 if the batch
// already existed.
func (p *pending) getOrCreate(pos world.ChunkPos) (b *Batch, n int) {
	k := pos.Key()
	if b := p.get(k); b != nil {
		return b, 0
	}
	s := p.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.batches[k]; b != nil {
		return b, 0
	}
	b = NewBatch(pos)
	s.batches[k] = b
	p.orderMu.Lock()
	b.elem = p.order.PushBack(b)
	p.orderMu.Unlock()
	return b, int(p.size.Add(1))
}

// replace makes b the live batch of its column. The batch it displaces is
// sealed and dropped; b takes the displaced batch's place in the FIFO, or the
// back if there was none. It returns the displaced batch, and the pending
// count after the enqueue when b was pushed to the back.
func (p *pending) replace(b *Batch) (prev *Batch, n int) {
	k := b.Key()
	s := p.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.batches[k]
	s.batches[k] = b
	p.orderMu.Lock()
	if prev != nil {
		b.elem = p.order.InsertBefore(b, prev.elem)
		p.order.Remove(prev.elem)
		prev.elem = nil
	} else {
		b.elem = p.order.PushBack(b)
		n = int(p.size.Add(1))
	}
	p.orderMu.Unlock()
	if prev != nil {
		prev.seal()
	}
	return prev, n
}

// pop removes and returns the oldest batch, or nil if none is pending.
func (p *pending) pop() *Batch {
	for {
		p.orderMu.Lock()
		front := p.order.Front()
		p.orderMu.Unlock()
		if front == nil {
			return nil
		}
		b := front.Value.(*Batch)

		s := p.shard(b.Key())
		s.mu.Lock()
		p.orderMu.Lock()
		if b.elem == nil {
			// Popped or replaced between the peek and the locks.
			p.orderMu.Unlock()
			s.mu.Unlock()
			continue
		}
		p.order.Remove(b.elem)
		b.elem = nil
		p.orderMu.Unlock()
		delete(s.batches, b.Key())
		s.mu.Unlock()
		p.size.Add(-1)
		return b
	}
}

// clear removes and seals every pending batch.
func (p *pending) clear() []*Batch {
	var dropped []*Batch
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		p.orderMu.Lock()
		for k, b := range s.batches {
			if b.elem != nil {
				p.order.Remove(b.elem)
				b.elem = nil
			}
			delete(s.batches, k)
			dropped = append(dropped, b)
		}
		p.orderMu.Unlock()
		s.mu.Unlock()
	}
	p.size.Add(-int64(len(dropped)))
	for _, b := range dropped {
		b.seal()
	}
	return dropped
}

// snapshot returns the pending batches in FIFO order.
func (p *pending) snapshot() []*Batch {
	p.orderMu.Lock()
	defer p.orderMu.Unlock()
	out := make([]*Batch, 0, p.order.Len())
	for e := p.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Batch))
	}
	return out
}

func (p *pending) count() int {
	return int(p.size.Load())
}
