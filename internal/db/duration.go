package db

// sumDurations converts discrete heartbeat timestamps into
// continuous seconds: the gap between consecutive pings counts in
// full up to cutoffSec, beyond that the activity is treated as
// idle and contributes nothing. A lone heartbeat has no measurable
// span and contributes zero.
//
// times must be sorted ascending.
func sumDurations(times []float64, cutoffSec float64) int64 {
	var total float64
	for i := 1; i < len(times); i++ {
		gap := times[i] - times[i-1]
		if gap <= 0 {
			continue
		}
		if gap > cutoffSec {
			continue
		}
		total += gap
	}
	return int64(total)
}

// attributeDurations splits the capped-gap total of one ordered
// ping sequence across its group labels. Every gap that counts
// toward sumDurations is credited to the label of its earlier
// ping, so the per-label sums add up to the sequence total even
// when labels interleave in time. The final ping closes the
// sequence and credits nothing; a label whose pings never start a
// counted gap keeps a zero entry.
//
// labels and times are parallel, sorted ascending by time.
func attributeDurations(
	labels []string, times []float64, cutoffSec float64,
) map[string]int64 {
	acc := make(map[string]float64, 8)
	for _, label := range labels {
		if _, ok := acc[label]; !ok {
			acc[label] = 0
		}
	}
	for i := 1; i < len(times); i++ {
		gap := times[i] - times[i-1]
		if gap <= 0 {
			continue
		}
		if gap > cutoffSec {
			continue
		}
		acc[labels[i-1]] += gap
	}
	out := make(map[string]int64, len(acc))
	for label, secs := range acc {
		out[label] = int64(secs)
	}
	return out
}
