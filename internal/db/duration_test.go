package db

import "testing"

func TestSumDurations(t *testing.T) {
	const cutoff = 120.0

	tests := []struct {
		name  string
		times []float64
		want  int64
	}{
		{"empty", nil, 0},
		{"single ping has no span", []float64{100}, 0},
		{"consecutive gaps sum", []float64{0, 60, 120}, 120},
		{"gap beyond cutoff is idle", []float64{0, 60, 1000}, 60},
		{"gap exactly at cutoff counts", []float64{0, 120}, 120},
		{"duplicate timestamps ignored", []float64{50, 50, 110}, 60},
		{
			"idle break splits two bursts",
			[]float64{0, 30, 60, 5000, 5030},
			90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sumDurations(tt.times, cutoff); got != tt.want {
				t.Errorf("sumDurations = %d, want %d", got, tt.want)
			}
		})
	}
}
