package batch

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mevdschee/tqentity/dirty"
	"github.com/mevdschee/tqentity/entity"
	"github.com/mevdschee/tqentity/metrics"
	"github.com/mevdschee/tqentity/partition"
	"github.com/mevdschee/tqentity/snapshot"
)

// Executor prepares and runs batched statements for one shape. The sqlstore
// package provides the database/sql implementation.
type Executor interface {
	// SupportsUpsert reports whether the dialect can perform a native
	// insert-or-update for the given key generation mode.
	SupportsUpsert(mode entity.KeyMode) bool

	// Prepare builds one statement shaped for exactly the given column set.
	Prepare(desc *entity.Descriptor, shape Shape) (Stmt, error)
}

// Stmt is one prepared batch statement.
type Stmt interface {
	// Exec adds every row as one batch entry and returns one affected-row
	// count per input row, in input order.
	Exec(ctx context.Context, rows []entity.Entity) ([]int64, error)

	// GeneratedKeys returns the keys generated for the rows of the most
	// recent Exec, in statement order. Only meaningful for insert shapes.
	GeneratedKeys() ([]entity.Key, error)

	// Close releases the statement.
	Close() error
}

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultBatchSize = 100
	DefaultMaxShapes = 5
)

// Unbounded disables chunking: one statement execution carries every row of
// its shape.
const Unbounded = partition.Unbounded

// Config tunes an Orchestrator.
type Config struct {
	// BatchSize is the default number of rows per executed statement.
	BatchSize int
	// MaxShapes caps the distinct statement shapes per run, the overflow
	// shape included. Excess column subsets coalesce into the full shape.
	// Must be at least 2: one slot is always held by the overflow shape,
	// and on upsert runs the seeded insert shape needs a slot of its own.
	MaxShapes int
}

// Orchestrator drives end-to-end insert/update/upsert/delete of entity
// streams for one entity type. It is scoped to one unit of work on one
// goroutine, like the checker and cache it composes.
type Orchestrator struct {
	desc      *entity.Descriptor
	checker   *dirty.Checker
	cache     snapshot.Cache
	exec      Executor
	sink      metrics.Sink
	batchSize int
	maxShapes int
}

// New validates the configuration and builds an orchestrator. A nil cache
// gets a fresh transaction-scoped cache; a nil sink discards metrics.
func New(desc *entity.Descriptor, checker *dirty.Checker, cache snapshot.Cache, exec Executor, sink metrics.Sink, cfg Config) (*Orchestrator, error) {
	if cfg.BatchSize < 0 && cfg.BatchSize != Unbounded {
		return nil, ErrBatchSize
	}
	if cfg.MaxShapes < 0 || cfg.MaxShapes == 1 {
		return nil, ErrMaxShapes
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxShapes == 0 {
		cfg.MaxShapes = DefaultMaxShapes
	}
	if cache == nil {
		cache = snapshot.NewTxCache()
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Orchestrator{
		desc:      desc,
		checker:   checker,
		cache:     cache,
		exec:      exec,
		sink:      sink,
		batchSize: cfg.BatchSize,
		maxShapes: cfg.MaxShapes,
	}, nil
}

// InsertAll writes every entity of the stream with a plain insert and
// returns the keys in statement order. For generated-key modes the keys come
// from the store, otherwise from the entities themselves.
func (o *Orchestrator) InsertAll(ctx context.Context, src partition.Source[entity.Entity], batchSize int) ([]entity.Key, error) {
	route := func(e entity.Entity) Shape { return Shape{Op: OpInsert} }
	return o.run(ctx, src, batchSize, route, nil, nil)
}

// UpdateAll writes the dirty entities of the stream, each under the
// narrowest statement shape the dirty check allows. Clean entities execute
// nothing but still report their keys.
func (o *Orchestrator) UpdateAll(ctx context.Context, src partition.Source[entity.Entity], batchSize int) ([]entity.Key, error) {
	overflow := Shape{Op: OpUpdateAll}
	return o.run(ctx, src, batchSize, o.routeUpdate, &overflow, nil)
}

// UpsertAll routes each entity to a plain insert, a native upsert or an
// update depending on key presence, dialect capability and the dirty check,
// then executes the batches. Keys are returned in statement order.
func (o *Orchestrator) UpsertAll(ctx context.Context, src partition.Source[entity.Entity], batchSize int) ([]entity.Key, error) {
	overflow := Shape{Op: OpUpdateAll}
	if o.exec.SupportsUpsert(o.desc.KeyMode) {
		overflow = Shape{Op: OpUpsert}
	}
	// The insert shape is seeded so keyless rows can never be coalesced
	// into an update-flavored overflow shape.
	seed := []Shape{{Op: OpInsert}}
	return o.run(ctx, src, batchSize, o.routeUpsert, &overflow, seed)
}

// DeleteAll removes every entity of the stream by primary key. With a
// version column configured, a vanished row is an optimistic lock conflict.
func (o *Orchestrator) DeleteAll(ctx context.Context, src partition.Source[entity.Entity], batchSize int) ([]entity.Key, error) {
	route := func(e entity.Entity) Shape { return Shape{Op: OpDelete} }
	return o.run(ctx, src, batchSize, route, nil, nil)
}

// classify looks up the snapshot for the entity and asks the checker for a
// verdict, recording cache and verdict metrics.
func (o *Orchestrator) classify(e entity.Entity) dirty.Verdict {
	snap, ok := o.cache.Lookup(o.desc.KeyOf(e))
	o.sink.SnapshotLookup(o.desc.Table, ok)
	var cached entity.Entity
	if ok {
		cached = snap
	}
	v := o.checker.Classify(e, cached)
	switch v.Kind {
	case dirty.Clean:
		o.sink.Verdict(o.desc.Table, "clean")
	case dirty.AllDirty:
		o.sink.Verdict(o.desc.Table, "all_dirty")
	default:
		o.sink.Verdict(o.desc.Table, "columns")
	}
	return v
}

func (o *Orchestrator) routeUpdate(e entity.Entity) Shape {
	switch v := o.classify(e); v.Kind {
	case dirty.Clean:
		return Shape{Op: OpNone}
	case dirty.Columns:
		return ShapeFor(OpUpdate, v.Columns)
	default:
		return Shape{Op: OpUpdateAll}
	}
}

func (o *Orchestrator) routeUpsert(e entity.Entity) Shape {
	if !o.desc.HasKey(e) {
		// Never persisted: a plain insert, no comparison needed.
		return Shape{Op: OpInsert}
	}
	if !o.exec.SupportsUpsert(o.desc.KeyMode) {
		return o.routeUpdate(e)
	}
	switch v := o.classify(e); v.Kind {
	case dirty.Clean:
		return Shape{Op: OpNone}
	case dirty.Columns:
		return ShapeFor(OpUpsert, v.Columns)
	default:
		return Shape{Op: OpUpsert}
	}
}

// routed pairs an entity with the shape it was classified into, so the
// snapshot lookup and dirty check run exactly once per entity.
type routed struct {
	e     entity.Entity
	shape Shape
}

// routeSource classifies entities as they are pulled and drops no-op rows,
// reporting their keys through the skip callback.
type routeSource struct {
	src   partition.Source[entity.Entity]
	route func(entity.Entity) Shape
	skip  func(entity.Entity)
	cur   routed
}

func (r *routeSource) Next() bool {
	for r.src.Next() {
		e := r.src.Value()
		shape := r.route(e)
		if shape.Op == OpNone {
			r.skip(e)
			continue
		}
		r.cur = routed{e: e, shape: shape}
		return true
	}
	return false
}

func (r *routeSource) Value() routed { return r.cur }
func (r *routeSource) Err() error    { return r.src.Err() }
func (r *routeSource) Close() error  { return r.src.Close() }

// run partitions the routed stream by shape and executes each partition as
// one batched statement, verifying per-row outcomes and invalidating
// snapshots on success. All opened statements are closed in a best-effort
// sweep; close failures never mask an in-flight error.
func (o *Orchestrator) run(ctx context.Context, src partition.Source[entity.Entity], batchSize int,
	route func(entity.Entity) Shape, overflow *Shape, seed []Shape) (keys []entity.Key, err error) {

	if batchSize == 0 {
		batchSize = o.batchSize
	}
	if batchSize == Unbounded {
		// Rows must stay grouped by shape, so the partitioner's
		// single-partition mode is not usable here; lifting the cap gives
		// one chunk per shape instead.
		batchSize = math.MaxInt
	}
	rs := &routeSource{
		src:   src,
		route: route,
		skip: func(e entity.Entity) {
			keys = append(keys, o.desc.KeyOf(e))
		},
	}
	maxKeys := partition.NoKeyLimit
	if overflow != nil {
		maxKeys = o.maxShapes
	}
	it, perr := partition.New[Shape, routed](rs, func(r routed) Shape { return r.shape }, partition.Options[Shape]{
		ChunkSize:   batchSize,
		MaxKeys:     maxKeys,
		OverflowKey: overflow,
		Seed:        seed,
	})
	if perr != nil {
		return nil, perr
	}

	stmts := make(map[Shape]Stmt)
	defer func() {
		for shape, stmt := range stmts {
			if cerr := stmt.Close(); cerr != nil {
				o.sink.CleanupError(o.desc.Table)
				if err == nil {
					err = fmt.Errorf("batch: close statement %s on %s: %w", shape, o.desc.Table, cerr)
				} else {
					log.Printf("[batch] %s: close statement %s: %v", o.desc.Table, shape, cerr)
				}
			}
		}
		if cerr := it.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for it.Next() {
		p := it.Partition()
		start := time.Now()
		rows := make([]entity.Entity, len(p.Chunk))
		for i, r := range p.Chunk {
			rows[i] = r.e
		}
		stmt, ok := stmts[p.Key]
		if !ok {
			stmt, err = o.exec.Prepare(o.desc, p.Key)
			if err != nil {
				return keys, fmt.Errorf("batch: prepare %s on %s: %w", p.Key, o.desc.Table, err)
			}
			stmts[p.Key] = stmt
		}
		counts, execErr := stmt.Exec(ctx, rows)
		if execErr != nil {
			return keys, fmt.Errorf("batch: execute %s on %s: %w", p.Key, o.desc.Table, execErr)
		}
		if err = o.verify(p.Key, rows, counts); err != nil {
			return keys, err
		}
		for _, e := range rows {
			o.cache.Invalidate(o.desc.KeyOf(e))
		}
		if p.Key.Op == OpInsert && o.desc.KeyMode != entity.KeyAssigned {
			generated, gerr := stmt.GeneratedKeys()
			if gerr != nil {
				return keys, fmt.Errorf("batch: generated keys on %s: %w", o.desc.Table, gerr)
			}
			keys = append(keys, generated...)
		} else {
			for _, e := range rows {
				keys = append(keys, o.desc.KeyOf(e))
			}
		}
		if overflow != nil && p.Key == *overflow {
			o.sink.Overflow(o.desc.Table, len(rows))
		}
		o.sink.Batch(o.desc.Table, p.Key.Op.String(), len(rows), time.Since(start))
	}
	if serr := it.Err(); serr != nil {
		return keys, fmt.Errorf("batch: stream on %s: %w", o.desc.Table, serr)
	}
	return keys, nil
}

// verify checks the affected-row count of every batched row. Exactly one row
// must be affected; zero rows under a configured version column is an
// optimistic lock conflict, anything else is a fatal write failure.
func (o *Orchestrator) verify(shape Shape, rows []entity.Entity, counts []int64) error {
	if len(counts) != len(rows) {
		return &WriteError{Table: o.desc.Table, Shape: shape, Row: len(counts), Affected: -1}
	}
	for i, count := range counts {
		if count == 1 {
			continue
		}
		key := o.desc.KeyOf(rows[i])
		if count == 0 && o.desc.Version != nil && shape.Op != OpInsert {
			o.sink.LockConflict(o.desc.Table)
			return &LockError{Table: o.desc.Table, Shape: shape, Row: i, Key: key}
		}
		return &WriteError{Table: o.desc.Table, Shape: shape, Row: i, Key: key, Affected: count}
	}
	return nil
}
