package partition

import (
	"strconv"
	"testing"
)

func benchInput(n, distinctKeys int) []item {
	input := make([]item, n)
	for i := range input {
		input[i] = item{key: strconv.Itoa(i % distinctKeys), n: i}
	}
	return input
}

func BenchmarkIter_FewKeys(b *testing.B) {
	input := benchInput(10000, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 100, MaxKeys: NoKeyLimit})
		if err != nil {
			b.Fatal(err)
		}
		for it.Next() {
		}
		it.Close()
	}
}

func BenchmarkIter_OverflowHeavy(b *testing.B) {
	input := benchInput(10000, 1000)
	overflow := "overflow"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := New(FromSlice(input), keyOf, Options[string]{ChunkSize: 100, MaxKeys: 5, OverflowKey: &overflow})
		if err != nil {
			b.Fatal(err)
		}
		for it.Next() {
		}
		it.Close()
	}
}
