package ring

import "testing"

func TestHashDeterministic(t *testing.T) {
	a := HashString("alpha.txt", 16)
	b := HashString("alpha.txt", 16)
	if a != b {
		t.Fatalf("Hash not deterministic: %d != %d", a, b)
	}
}

func TestHashBitWidth(t *testing.T) {
	id := HashString("some-long-filename-that-should-still-fit.bin", 8)
	if id >= 256 {
		t.Fatalf("id %d exceeds 8-bit space", id)
	}
}

func TestInOpen(t *testing.T) {
	cases := []struct {
		x, a, b Id
		want    bool
	}{
		{x: 5, a: 1, b: 10, want: true},
		{x: 1, a: 1, b: 10, want: false}, // boundary excluded
		{x: 10, a: 1, b: 10, want: false},
		{x: 15, a: 10, b: 5, want: true},  // wraparound clockwise
		{x: 7, a: 10, b: 5, want: false},  // outside wrapped interval
		{x: 3, a: 3, b: 3, want: false},   // a==b: open is empty
	}
	for _, c := range cases {
		if got := inOpen(c.x, c.a, c.b); got != c.want {
			t.Errorf("inOpen(%d,%d,%d) = %v, want %v", c.x, c.a, c.b, got, c.want)
		}
	}
}

func TestInRightClosed(t *testing.T) {
	cases := []struct {
		x, a, b Id
		want    bool
	}{
		{x: 10, a: 1, b: 10, want: true}, // right boundary included
		{x: 1, a: 1, b: 10, want: false},
		{x: 5, a: 5, b: 5, want: true},  // a==b: singleton {b}
		{x: 6, a: 5, b: 5, want: false}, // a==b: singleton {b}
	}
	for _, c := range cases {
		if got := inRightClosed(c.x, c.a, c.b); got != c.want {
			t.Errorf("inRightClosed(%d,%d,%d) = %v, want %v", c.x, c.a, c.b, got, c.want)
		}
	}
}

func TestAddWraparound(t *testing.T) {
	var id Id = 250
	got := id.add(3, 8) // 250 + 8 = 258 mod 256 = 2
	if got != 2 {
		t.Fatalf("add wraparound = %d, want 2", got)
	}
}
