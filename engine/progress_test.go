package engine

import "testing"

func TestDetectProgress(t *testing.T) {
	tests := []struct {
		name string
		prev Metrics
		cur  Metrics
		want bool
	}{
		{"all equal", Metrics{FileCount: 2, CommitCount: 1, TestCount: 3}, Metrics{FileCount: 2, CommitCount: 1, TestCount: 3}, false},
		{"file increase", Metrics{FileCount: 2}, Metrics{FileCount: 3}, true},
		{"commit increase", Metrics{CommitCount: 0}, Metrics{CommitCount: 1}, true},
		{"test increase", Metrics{TestCount: 5}, Metrics{TestCount: 6}, true},
		{"all increase", Metrics{FileCount: 1, CommitCount: 1, TestCount: 1}, Metrics{FileCount: 2, CommitCount: 2, TestCount: 2}, true},
		{"decrease only", Metrics{FileCount: 5}, Metrics{FileCount: 3}, false},
		{"mixed increase and decrease", Metrics{FileCount: 5, TestCount: 1}, Metrics{FileCount: 3, TestCount: 2}, false},
		{"zero to zero", Metrics{}, Metrics{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectProgress(tt.prev, tt.cur); got != tt.want {
				t.Errorf("DetectProgress(%+v, %+v) = %v, want %v", tt.prev, tt.cur, got, tt.want)
			}
		})
	}
}
