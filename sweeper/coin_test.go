package sweeper

import "testing"

func TestMajority_TieGoesToZero(t *testing.T) {
	if majority(512, 1024) != 0 {
		t.Fatalf("tie must resolve to 0")
	}
	if majority(513, 1024) != 1 {
		t.Fatalf("strict majority must resolve to 1")
	}
	if majority(0, 0) != 0 {
		t.Fatalf("empty sample must resolve to 0")
	}
}

func TestRandCoin_ExtremeBiases(t *testing.T) {
	coin := NewRandCoin(1)
	for i := 0; i < 10; i++ {
		if coin.Sample(1, 101) != 1 {
			t.Fatalf("bias 1 must always yield 1")
		}
		if coin.Sample(0, 101) != 0 {
			t.Fatalf("bias 0 must always yield 0")
		}
	}
	if coin.Sample(1, 0) != 0 {
		t.Fatalf("zero trials must yield 0")
	}
}

func TestRandCoin_SameSeedSameSequence(t *testing.T) {
	a, b := NewRandCoin(42), NewRandCoin(42)
	for i := 0; i < 50; i++ {
		if a.Sample(0.5, 33) != b.Sample(0.5, 33) {
			t.Fatalf("draw %d diverged", i)
		}
	}
}

func TestParallelCoin_IndependentOfWorkerCount(t *testing.T) {
	serial := NewParallelCoin(7, 1)
	wide := NewParallelCoin(7, 8)
	ones := 0
	for i := 0; i < 100; i++ {
		a := serial.Sample(0.5, 1001)
		b := wide.Sample(0.5, 1001)
		if a != b {
			t.Fatalf("draw %d: serial=%d parallel=%d", i, a, b)
		}
		ones += a
	}
	if ones == 0 || ones == 100 {
		t.Fatalf("fair coin should not be constant, got %d ones out of 100", ones)
	}
}

func TestParallelCoin_ExtremeBiases(t *testing.T) {
	coin := NewParallelCoin(3, 4)
	if coin.Sample(1, 1024) != 1 {
		t.Fatalf("bias 1 must yield 1")
	}
	if coin.Sample(0, 1024) != 0 {
		t.Fatalf("bias 0 must yield 0")
	}
	if coin.Sample(0.5, -3) != 0 {
		t.Fatalf("negative trials must yield 0")
	}
}

func TestScriptedCoin_ReplaysThenFallsBack(t *testing.T) {
	coin := NewScriptedCoin(0, 1, 1, 0)
	got := []int{
		coin.Sample(0.5, 1),
		coin.Sample(0.5, 1),
		coin.Sample(0.5, 1),
		coin.Sample(0.5, 1),
		coin.Sample(0.5, 1),
	}
	want := []int{1, 1, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if coin.Calls() != 5 {
		t.Fatalf("expected 5 calls, got %d", coin.Calls())
	}
}
