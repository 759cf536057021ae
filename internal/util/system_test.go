package util

import "testing"

func TestLogicalCores(t *testing.T) {
	if cores := LogicalCores(); cores <= 0 {
		t.Errorf("LogicalCores() = %d, want > 0", cores)
	}
}

func TestPhysicalCores(t *testing.T) {
	physical := PhysicalCores()
	logical := LogicalCores()

	if physical <= 0 {
		t.Errorf("PhysicalCores() = %d, want > 0", physical)
	}
	if physical > logical {
		t.Errorf("PhysicalCores() = %d > LogicalCores() = %d", physical, logical)
	}
}

func TestAvailableParallelismStable(t *testing.T) {
	first := AvailableParallelism()
	if first < 1 {
		t.Fatalf("AvailableParallelism() = %d, want >= 1", first)
	}
	if again := AvailableParallelism(); again != first {
		t.Errorf("AvailableParallelism() changed between calls: %d then %d", first, again)
	}
}
