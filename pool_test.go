package bookdl

import (
	"runtime"
	"testing"
)

func TestResolveWorkers(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{
			name:    "explicit takes priority",
			workers: 4,
			want:    4,
		},
		{
			name:    "explicit=1 for sequential",
			workers: 1,
			want:    1,
		},
		{
			name:    "explicit can exceed max",
			workers: MaxWorkers + 4,
			want:    MaxWorkers + 4,
		},
		{
			name:    "zero uses auto calculation",
			workers: 0,
			want:    min(max(gomaxprocs/cpuDivisor, MinWorkers), MaxWorkers),
		},
		{
			name:    "negative uses auto calculation",
			workers: -3,
			want:    min(max(gomaxprocs/cpuDivisor, MinWorkers), MaxWorkers),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResolveWorkers(tt.workers)
			if got != tt.want {
				t.Errorf("ResolveWorkers(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}
