package table

import (
	"math"

	"github.com/ValentinKolb/dTS/lib/tuple"
)

// Info describes the state of a table. It is reported by the replica server and logged
// on shutdown.
type Info struct {
	Slots     int               `json:"slots"`
	Tuples    int               `json:"tuples"`
	UsedSlots int               `json:"used_slots"`
	Bytes     int               `json:"bytes"`
	Slot      DistributionStats `json:"slot_distribution"`
}

// Stats summarizes a list of values.
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// DistributionStats rates how evenly tuples are spread over the slots. A quality of 1
// means every slot holds the same number of tuples.
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

func newInfo(slots [][]*tuple.Tuple, size int) Info {
	info := Info{Slots: len(slots), Tuples: size}
	sizes := make([]float64, len(slots))
	for i, slot := range slots {
		if len(slot) > 0 {
			info.UsedSlots++
		}
		sizes[i] = float64(len(slot))
		for _, t := range slot {
			info.Bytes += t.SizeBytes()
		}
	}
	info.Slot = newDistributionStats(sizes)
	return info
}

func newStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

func newDistributionStats(slotSizes []float64) DistributionStats {
	stats := newStats(slotSizes)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}
