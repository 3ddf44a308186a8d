// Package partition groups a pull-based stream of elements into fixed-size
// chunks keyed by a classification function. The number of distinct live
// keys can be capped; once the cap is reached, elements of new keys are
// redirected into a reserved overflow bucket so that the total number of
// groups stays bounded. An unbounded chunk size degenerates into a single
// partition carrying the whole input, unclassified and in original order.
package partition

const (
	// Unbounded is the chunk-size sentinel that disables partitioning
	// entirely: classification is bypassed and the whole input is
	// materialized into a single partition, in original order.
	Unbounded = -1

	// NoKeyLimit is the max-keys sentinel that disables the distinct-key
	// cap and the overflow redirection.
	NoKeyLimit = -1
)

// Partition is one emitted group: a key and up to chunk-size elements that
// mapped to it, in encounter order.
type Partition[K comparable, V any] struct {
	Key   K
	Chunk []V
}

// Options configures an Iter.
type Options[K comparable] struct {
	// ChunkSize is the number of elements per emitted partition, or
	// Unbounded to materialize the whole input into a single partition.
	ChunkSize int

	// MaxKeys caps the number of distinct live keys, overflow bucket
	// included, or NoKeyLimit. With a finite cap the overflow key is
	// reserved as one of the slots even before any element maps to it.
	MaxKeys int

	// OverflowKey is the reserved catch-all key. Required when MaxKeys is
	// finite.
	OverflowKey *K

	// Seed registers keys up front, in order, counting against the cap.
	// Seeded keys can never be redirected to the overflow bucket.
	Seed []K
}

// Iter groups the elements of a source into partitions. It follows the same
// discipline as Source: Next, Partition, Err, Close. The source is closed as
// soon as it is drained, and always when the Iter itself is closed, even if
// consumption is abandoned early.
type Iter[K comparable, V any] struct {
	src       Source[V]
	keyFn     func(V) K
	opts      Options[K]
	buffers   map[K][]V
	order     []K // keys in first-encounter order, for final flush
	normal    int // distinct non-overflow keys registered
	ready     []Partition[K, V]
	cur       Partition[K, V]
	err       error
	drained   bool
	srcClosed bool
	closed    bool
}

// New validates the options and returns an Iter over src. Nothing is pulled
// from the source until the first call to Next.
func New[K comparable, V any](src Source[V], keyFn func(V) K, opts Options[K]) (*Iter[K, V], error) {
	if opts.ChunkSize <= 0 && opts.ChunkSize != Unbounded {
		return nil, ErrChunkSize
	}
	if opts.MaxKeys <= 0 && opts.MaxKeys != NoKeyLimit {
		return nil, ErrMaxKeys
	}
	if opts.MaxKeys != NoKeyLimit && opts.OverflowKey == nil {
		return nil, ErrOverflowKey
	}
	it := &Iter[K, V]{
		src:     src,
		keyFn:   keyFn,
		opts:    opts,
		buffers: make(map[K][]V),
	}
	for _, k := range opts.Seed {
		if _, ok := it.buffers[k]; !ok {
			it.register(k)
		}
	}
	return it, nil
}

// Next advances to the next completed partition. It returns false at the end
// of the stream or on error; consult Err afterwards.
func (it *Iter[K, V]) Next() bool {
	if it.closed {
		return false
	}
	if it.opts.ChunkSize == Unbounded {
		return it.nextUnbounded()
	}
	for len(it.ready) == 0 && !it.drained && it.err == nil {
		it.pull()
	}
	if len(it.ready) == 0 {
		return false
	}
	it.cur = it.ready[0]
	it.ready = it.ready[1:]
	return true
}

// Partition returns the partition produced by the last successful Next.
func (it *Iter[K, V]) Partition() Partition[K, V] { return it.cur }

// Err returns the first error seen while pulling from or closing the source.
func (it *Iter[K, V]) Err() error { return it.err }

// Close discards buffered elements and closes the source. It is safe to call
// Close more than once and after the stream is exhausted.
func (it *Iter[K, V]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.buffers = nil
	it.ready = nil
	it.closeSource()
	return it.err
}

// pull consumes one element from the source, or flushes all remaining
// buffers in first-encounter order once the source is drained.
func (it *Iter[K, V]) pull() {
	if !it.src.Next() {
		it.drained = true
		if err := it.src.Err(); err != nil {
			it.err = err
			it.closeSource()
			return
		}
		for _, k := range it.order {
			if buf := it.buffers[k]; len(buf) > 0 {
				it.ready = append(it.ready, Partition[K, V]{Key: k, Chunk: buf})
				it.buffers[k] = nil
			}
		}
		it.closeSource()
		return
	}
	v := it.src.Value()
	k := it.classify(v)
	buf := append(it.buffers[k], v)
	if len(buf) >= it.opts.ChunkSize {
		it.ready = append(it.ready, Partition[K, V]{Key: k, Chunk: buf})
		// The key stays known: flushing a chunk does not free its slot.
		it.buffers[k] = nil
	} else {
		it.buffers[k] = buf
	}
}

// classify maps an element to its live key, redirecting to the overflow
// bucket when the element's natural key would exceed the key budget.
func (it *Iter[K, V]) classify(v V) K {
	k := it.keyFn(v)
	if _, ok := it.buffers[k]; ok {
		return k
	}
	if it.opts.MaxKeys != NoKeyLimit && !it.isOverflow(k) && it.normal >= it.opts.MaxKeys-1 {
		k = *it.opts.OverflowKey
		if _, ok := it.buffers[k]; ok {
			return k
		}
	}
	it.register(k)
	return k
}

func (it *Iter[K, V]) register(k K) {
	it.buffers[k] = nil
	it.order = append(it.order, k)
	if !it.isOverflow(k) {
		it.normal++
	}
}

func (it *Iter[K, V]) isOverflow(k K) bool {
	return it.opts.OverflowKey != nil && k == *it.opts.OverflowKey
}

// nextUnbounded materializes the entire input into a single partition in
// original order, never consulting the classification function. The key is
// the overflow key when one is configured, the zero key otherwise.
func (it *Iter[K, V]) nextUnbounded() bool {
	if it.drained {
		return false
	}
	it.drained = true
	var all []V
	for it.src.Next() {
		all = append(all, it.src.Value())
	}
	if err := it.src.Err(); err != nil {
		it.err = err
	}
	it.closeSource()
	if it.err != nil || len(all) == 0 {
		return false
	}
	var k K
	if it.opts.OverflowKey != nil {
		k = *it.opts.OverflowKey
	}
	it.cur = Partition[K, V]{Key: k, Chunk: all}
	return true
}

// closeSource closes the input exactly once. A close failure never masks an
// earlier error.
func (it *Iter[K, V]) closeSource() {
	if it.srcClosed {
		return
	}
	it.srcClosed = true
	if cerr := it.src.Close(); cerr != nil && it.err == nil {
		it.err = cerr
	}
}
