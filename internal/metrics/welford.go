package metrics

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// WelfordState holds running statistics using Welford's online algorithm.
// Mean and standard deviation are updated in O(1) without storing observations.
type WelfordState struct {
	Count int     // n - number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from mean (for variance)
	Max   float64 // largest observation
}

// Update adds a new observation
func (w *WelfordState) Update(newValue float64) {
	w.Count++
	delta := newValue - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := newValue - w.Mean
	w.M2 += delta * delta2
	if newValue > w.Max {
		w.Max = newValue
	}
}

// StdDev returns the population standard deviation.
// Returns 0 if fewer than 2 observations.
func (w *WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}

// OffsetStats tracks how far, in metres, timetable stop coordinates lie
// from the station records they were matched to.
type OffsetStats struct {
	WelfordState
}

// Observe records the offset between a timetable stop and its matched station
func (o *OffsetStats) Observe(stopLat, stopLon, stationLat, stationLon float64) float64 {
	d := geo.Distance(orb.Point{stopLon, stopLat}, orb.Point{stationLon, stationLat})
	o.Update(d)
	return d
}
