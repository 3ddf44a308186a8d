package partition

import (
	"errors"
	"testing"
)

type item struct {
	key string
	n   int
}

func collect(t *testing.T, it *Iter[string, item]) []Partition[string, item] {
	t.Helper()
	var out []Partition[string, item]
	for it.Next() {
		out = append(out, it.Partition())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected iterator error: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	return out
}

func keyOf(v item) string { return v.key }

func strPtr(s string) *string { return &s }

func TestNew_Validation(t *testing.T) {
	src := FromSlice([]item{})

	_, err := New(src, keyOf, Options[string]{ChunkSize: 0, MaxKeys: NoKeyLimit})
	if !errors.Is(err, ErrChunkSize) {
		t.Errorf("chunk size 0: got %v, want ErrChunkSize", err)
	}

	_, err = New(src, keyOf, Options[string]{ChunkSize: 10, MaxKeys: 0})
	if !errors.Is(err, ErrMaxKeys) {
		t.Errorf("max keys 0: got %v, want ErrMaxKeys", err)
	}

	_, err = New(src, keyOf, Options[string]{ChunkSize: 10, MaxKeys: 3})
	if !errors.Is(err, ErrOverflowKey) {
		t.Errorf("missing overflow key: got %v, want ErrOverflowKey", err)
	}

	_, err = New(src, keyOf, Options[string]{ChunkSize: 10, MaxKeys: 3, OverflowKey: strPtr("of")})
	if err != nil {
		t.Errorf("valid options: got %v, want nil", err)
	}
}

func TestIter_ChunksAndFlushOrder(t *testing.T) {
	input := []item{
		{key: "a", n: 1}, {key: "b", n: 2}, {key: "a", n: 3},
		{key: "b", n: 4}, {key: "c", n: 5}, {key: "a", n: 6},
	}
	it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 2, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	// a fills first, then b; the flush emits the leftovers of c and a in
	// first-encounter order.
	want := []Partition[string, item]{
		{Key: "a", Chunk: []item{{key: "a", n: 1}, {key: "a", n: 3}}},
		{Key: "b", Chunk: []item{{key: "b", n: 2}, {key: "b", n: 4}}},
		{Key: "a", Chunk: []item{{key: "a", n: 6}}},
		{Key: "c", Chunk: []item{{key: "c", n: 5}}},
	}
	assertPartitions(t, got, want)
}

func assertPartitions(t *testing.T, got, want []Partition[string, item]) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d partitions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Key != want[i].Key {
			t.Errorf("partition %d: key %q, want %q", i, got[i].Key, want[i].Key)
		}
		if len(got[i].Chunk) != len(want[i].Chunk) {
			t.Errorf("partition %d: %d elements, want %d", i, len(got[i].Chunk), len(want[i].Chunk))
			continue
		}
		for j := range want[i].Chunk {
			if got[i].Chunk[j] != want[i].Chunk[j] {
				t.Errorf("partition %d element %d: %v, want %v", i, j, got[i].Chunk[j], want[i].Chunk[j])
			}
		}
	}
}

// A flushed chunk does not free the key's slot: the same key keeps
// accumulating fresh chunks while new keys still overflow.
func TestIter_KeySlotNotFreedByFlush(t *testing.T) {
	input := []item{
		{key: "a", n: 1}, {key: "a", n: 2}, // fills and emits
		{key: "b", n: 3}, // over budget, redirected
		{key: "a", n: 4}, {key: "a", n: 5}, // second chunk for a
	}
	it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 2, MaxKeys: 2, OverflowKey: strPtr("of")})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	want := []Partition[string, item]{
		{Key: "a", Chunk: []item{{key: "a", n: 1}, {key: "a", n: 2}}},
		{Key: "a", Chunk: []item{{key: "a", n: 4}, {key: "a", n: 5}}},
		{Key: "of", Chunk: []item{{key: "b", n: 3}}},
	}
	assertPartitions(t, got, want)
}

func TestIter_OverflowRedirect(t *testing.T) {
	// One normal slot plus the reserved overflow slot. The first key takes
	// the normal slot; every later key lands in the overflow bucket.
	input := []item{
		{key: "1", n: 1}, {key: "2", n: 2}, {key: "1", n: 3}, {key: "3", n: 4},
	}
	it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 2, MaxKeys: 2, OverflowKey: strPtr("of")})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	want := []Partition[string, item]{
		{Key: "1", Chunk: []item{{key: "1", n: 1}, {key: "1", n: 3}}},
		{Key: "of", Chunk: []item{{key: "2", n: 2}, {key: "3", n: 4}}},
	}
	assertPartitions(t, got, want)
}

// An element whose natural key is the overflow key occupies the reserved
// slot, not a normal one.
func TestIter_NaturalOverflowKey(t *testing.T) {
	input := []item{
		{key: "of", n: 1}, {key: "a", n: 2}, {key: "b", n: 3},
	}
	it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 10, MaxKeys: 2, OverflowKey: strPtr("of")})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	want := []Partition[string, item]{
		{Key: "of", Chunk: []item{{key: "of", n: 1}, {key: "b", n: 3}}},
		{Key: "a", Chunk: []item{{key: "a", n: 2}}},
	}
	assertPartitions(t, got, want)
}

// Seeded keys are registered before any element arrives and can never be
// redirected.
func TestIter_SeedKeys(t *testing.T) {
	input := []item{
		{key: "x", n: 1}, {key: "seeded", n: 2}, {key: "y", n: 3},
	}
	it, err := New(FromSlice(input), keyOf, Options[string]{
		ChunkSize:   10,
		MaxKeys:     3,
		OverflowKey: strPtr("of"),
		Seed:        []string{"seeded"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	// "seeded" holds the single normal slot, so x and y overflow. The seeded
	// key flushes first because it was registered first.
	want := []Partition[string, item]{
		{Key: "seeded", Chunk: []item{{key: "seeded", n: 2}}},
		{Key: "of", Chunk: []item{{key: "x", n: 1}, {key: "y", n: 3}}},
	}
	assertPartitions(t, got, want)
}

func TestIter_UnboundedChunkSize(t *testing.T) {
	input := []item{{key: "a", n: 1}, {key: "b", n: 2}, {key: "a", n: 3}}
	it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: Unbounded, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	// The degenerate mode ignores keys: one partition, original order.
	if len(got) != 1 {
		t.Fatalf("got %d partitions, want exactly 1: %v", len(got), got)
	}
	if len(got[0].Chunk) != len(input) {
		t.Fatalf("got %d elements, want %d", len(got[0].Chunk), len(input))
	}
	for i, v := range got[0].Chunk {
		if v != input[i] {
			t.Errorf("element %d: %v, want %v (original order)", i, v, input[i])
		}
	}
}

func TestIter_UnboundedUsesOverflowKey(t *testing.T) {
	of := "of"
	input := []item{{key: "a", n: 1}, {key: "b", n: 2}}
	it, err := New(FromSlice(input), keyOf, Options[string]{
		ChunkSize:   Unbounded,
		MaxKeys:     2,
		OverflowKey: &of,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	if len(got) != 1 || got[0].Key != of {
		t.Fatalf("got %v, want one partition under the overflow key", got)
	}
}

func TestIter_UnboundedEmptyInput(t *testing.T) {
	it, err := New(FromSlice([]item{}), keyOf, Options[string]{ChunkSize: Unbounded, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	if it.Next() {
		t.Error("Next on empty unbounded input should return false")
	}
	if err := it.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestIter_EmptyInput(t *testing.T) {
	it, err := New(FromSlice([]item{}), keyOf, Options[string]{ChunkSize: 5, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	if it.Next() {
		t.Error("Next on empty input should return false")
	}
}

type trackedSource struct {
	items  []item
	pos    int
	closed int
	errAt  int // 1-based position at which Err fires, 0 for never
}

func (s *trackedSource) Next() bool {
	if s.errAt > 0 && s.pos >= s.errAt {
		return false
	}
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *trackedSource) Value() item { return s.items[s.pos-1] }

func (s *trackedSource) Err() error {
	if s.errAt > 0 && s.pos >= s.errAt {
		return errors.New("upstream failed")
	}
	return nil
}

func (s *trackedSource) Close() error {
	s.closed++
	return nil
}

func TestIter_ClosesSourceWhenDrained(t *testing.T) {
	src := &trackedSource{items: []item{{key: "a", n: 1}}}
	it, err := New[string, item](src, keyOf, Options[string]{ChunkSize: 5, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	for it.Next() {
	}
	if src.closed == 0 {
		t.Error("source not closed after drain")
	}
	if err := it.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if src.closed != 1 {
		t.Errorf("source closed %d times, want 1", src.closed)
	}
}

func TestIter_CloseAbandonedConsumption(t *testing.T) {
	src := &trackedSource{items: []item{
		{key: "a", n: 1}, {key: "a", n: 2}, {key: "b", n: 3},
	}}
	it, err := New[string, item](src, keyOf, Options[string]{ChunkSize: 2, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	if !it.Next() {
		t.Fatal("expected a first partition")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if src.closed != 1 {
		t.Errorf("source closed %d times, want 1", src.closed)
	}
	if it.Next() {
		t.Error("Next after Close should return false")
	}
}

func TestIter_SourceError(t *testing.T) {
	src := &trackedSource{items: []item{
		{key: "a", n: 1}, {key: "a", n: 2}, {key: "b", n: 3},
	}, errAt: 3}
	it, err := New[string, item](src, keyOf, Options[string]{ChunkSize: 2, MaxKeys: NoKeyLimit})
	if err != nil {
		t.Fatal(err)
	}
	// The completed chunk for a is still delivered, then the error surfaces.
	if !it.Next() {
		t.Fatal("expected the completed chunk before the error")
	}
	if it.Next() {
		t.Error("expected no partition after the source error")
	}
	if it.Err() == nil {
		t.Error("expected Err after source failure")
	}
	if src.closed == 0 {
		t.Error("source not closed after error")
	}
}
