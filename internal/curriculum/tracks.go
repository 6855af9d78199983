package curriculum

import "sort"

// Range is the inclusive numeric fact-ID range owned by a track.
type Range struct {
	Low  int
	High int
}

// Size returns the number of facts the range covers.
func (r Range) Size() int {
	return r.High - r.Low + 1
}

// Contains reports whether the fact ID falls inside the range.
func (r Range) Contains(factID int) bool {
	return factID >= r.Low && factID <= r.High
}

// Default curriculum tables. Deployments replace them at startup via the
// importer; after startup they are read-only.
var trackRanges = map[string]Range{
	"addition":       {Low: 80, High: 223},
	"subtraction":    {Low: 224, High: 367},
	"multiplication": {Low: 368, High: 511},
	"division":       {Low: 512, High: 655},
}

// fluencyTargets maps grade (0 = kindergarten) to the maximum acceptable
// average response time in seconds to be considered fluent.
var fluencyTargets = map[int]float64{
	0:  10,
	1:  8,
	2:  6,
	3:  5,
	4:  4,
	5:  3.5,
	6:  3,
	7:  3,
	8:  2.5,
	9:  2.5,
	10: 2,
	11: 2,
	12: 2,
}

// TrackRange returns the fact-ID range for a track.
func TrackRange(trackID string) (Range, bool) {
	r, ok := trackRanges[trackID]
	return r, ok
}

// Tracks returns all known track IDs in sorted order.
func Tracks() []string {
	ids := make([]string, 0, len(trackRanges))
	for id := range trackRanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateFacts returns the fact IDs that fall outside the track's range.
// An empty result means the whole set is valid.
func ValidateFacts(trackID string, factIDs []int) []int {
	r, ok := trackRanges[trackID]
	if !ok {
		// unknown track owns nothing, so every fact is an offender
		out := make([]int, len(factIDs))
		copy(out, factIDs)
		sort.Ints(out)
		return out
	}
	var offenders []int
	for _, id := range factIDs {
		if !r.Contains(id) {
			offenders = append(offenders, id)
		}
	}
	sort.Ints(offenders)
	return offenders
}

// FluencyTarget returns the grade's fluency target in seconds. Grades outside
// the table clamp to the nearest edge.
func FluencyTarget(grade int) float64 {
	if grade < 0 {
		grade = 0
	}
	if grade > 12 {
		grade = 12
	}
	return fluencyTargets[grade]
}

// SetTrackRanges replaces the track range table. Startup-only.
func SetTrackRanges(ranges map[string]Range) {
	if len(ranges) > 0 {
		trackRanges = ranges
	}
}

// SetFluencyTargets replaces the grade target table. Startup-only.
func SetFluencyTargets(targets map[int]float64) {
	if len(targets) > 0 {
		fluencyTargets = targets
	}
}
