package mathx

import "testing"

func TestHash3_DeterministicAndSeedSensitive(t *testing.T) {
	a := Hash3(42, 1, 2, 3)
	if b := Hash3(42, 1, 2, 3); a != b {
		t.Fatalf("hash not deterministic: %d vs %d", a, b)
	}
	if c := Hash3(43, 1, 2, 3); a == c {
		t.Fatalf("seed change did not change hash")
	}
	if d := Hash3(42, 2, 1, 3); a == d {
		t.Fatalf("argument order did not change hash")
	}
}

func TestPermilleRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		p := Permille(Hash3(7, i, -i, i*3))
		if p < 0 || p >= 1000 {
			t.Fatalf("permille out of range: %d", p)
		}
	}
	if ClampPermille(-4) != 0 || ClampPermille(1200) != 1000 || ClampPermille(250) != 250 {
		t.Fatalf("ClampPermille mismatch")
	}
}
