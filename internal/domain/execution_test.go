package domain

import "testing"

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		success int
		failed  int
		want    ExecutionStatus
	}{
		{"all delivered", 3, 0, ExecutionSuccess},
		{"some failed", 700, 500, ExecutionPartial},
		{"all failed", 0, 2, ExecutionFailed},
		{"nothing attempted", 0, 0, ExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.success, tt.failed); got != tt.want {
				t.Errorf("DeriveStatus(%d, %d) = %s, want %s", tt.success, tt.failed, got, tt.want)
			}
		})
	}
}

func TestFilterTreeGroupIDsSorted(t *testing.T) {
	tree := FilterTree{"g2": nil, "g10": nil, "g1": nil}
	got := tree.GroupIDs()
	want := []string{"g1", "g10", "g2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GroupIDs() = %v, want %v", got, want)
		}
	}
}
