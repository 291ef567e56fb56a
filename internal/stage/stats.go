package stage

import "time"

// Stats summarizes one stage run.
type Stats struct {
	Stage      string
	Eligible   int
	Dispatched int
	Succeeded  int
	Failed     int
	Deleted    int
	// Skipped counts eligible items left undispatched because the cap was reached.
	Skipped int
	Elapsed time.Duration
}

// PerItem returns the average wall time per successful item.
func (s Stats) PerItem() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Succeeded)
}

// Progress is reported after every finished item.
type Progress struct {
	Stage     string
	Done      int
	Total     int
	Succeeded int
	Failed    int
}
