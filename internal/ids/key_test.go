package ids

import "testing"

func TestChunkKeyRoundTrip(t *testing.T) {
	var tests = []struct {
		id   VectorID
		cidx int
	}{
		{NewVectorID(), 0},
		{NewVectorID(), 1},
		{NewVectorID(), 1 << 20},
	}

	for _, test := range tests {
		k := ChunkKey(test.id, test.cidx)

		kind, id, cidx, err := Decode(k)
		if err != nil {
			t.Fatal(err)
		}
		if kind != KindDVec {
			t.Errorf("wrong kind: want %v, got %v", KindDVec, kind)
		}
		if id != test.id {
			t.Errorf("wrong vector id: want %v, got %v", test.id, id)
		}
		if cidx != test.cidx {
			t.Errorf("wrong chunk index: want %v, got %v", test.cidx, cidx)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	var tests = [][]byte{
		nil,
		{},
		{byte(KindDVec)},
		append([]byte{0xff}, ChunkKey(NewVectorID(), 0)[1:]...),
	}

	for _, test := range tests {
		if _, _, _, err := Decode(test); err == nil {
			t.Fatalf("expected error decoding %x, got nil", test)
		}
	}
}

func TestHomeNodeDeterministic(t *testing.T) {
	k := ChunkKey(NewVectorID(), 7)

	first := HomeNode(k, 4)
	for i := 0; i < 100; i++ {
		if got := HomeNode(k, 4); got != first {
			t.Fatalf("HomeNode is not deterministic: %v != %v", got, first)
		}
	}
	if first < 0 || first >= 4 {
		t.Fatalf("HomeNode out of range: %v", first)
	}

	if !IsHome(k, first, 4) {
		t.Errorf("IsHome(%v) should be true for home node %v", first, first)
	}
}

func TestHomeNodeSpread(t *testing.T) {
	id := NewVectorID()
	counts := make([]int, 4)
	for c := 0; c < 64; c++ {
		counts[HomeNode(ChunkKey(id, c), 4)]++
	}
	for i, n := range counts {
		if n == 0 {
			t.Errorf("node %d never homed a chunk across 64 tries", i)
		}
	}
}
