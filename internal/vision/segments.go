package vision

// Segment is a contiguous run of non-zero projection signal, in
// projection-local coordinates. Start is inclusive, End exclusive.
type Segment struct {
	Start int
	End   int
}

// Extent returns the segment length in pixels.
func (s Segment) Extent() int { return s.End - s.Start }

// Segments finds the contiguous non-zero runs of a 1-D projection. With
// reverse set, the projection is scanned from its far end and the
// returned coordinates are flipped back, so the segment nearest the far
// end comes first; callers scanning toward decreasing screen coordinates
// (above/left) use this to check the nearest segment first.
func Segments(proj []float64, reverse bool) []Segment {
	n := len(proj)
	at := func(i int) float64 {
		if reverse {
			return proj[n-1-i]
		}
		return proj[i]
	}

	var segs []Segment
	inRun := false
	start := 0
	for i := 0; i < n; i++ {
		if at(i) > 0 {
			if !inRun {
				inRun = true
				start = i
			}
		} else if inRun {
			inRun = false
			segs = append(segs, flip(Segment{Start: start, End: i}, n, reverse))
		}
	}
	if inRun {
		segs = append(segs, flip(Segment{Start: start, End: n}, n, reverse))
	}
	return segs
}

// flip maps a reversed-scan segment back to forward coordinates.
func flip(s Segment, n int, reverse bool) Segment {
	if !reverse {
		return s
	}
	return Segment{Start: n - s.End, End: n - s.Start}
}

// Gaps returns the runs of empty signal between consecutive segments.
// The secondary spatial strategy treats these as targets: an empty input
// field next to a label produces no edges of its own, only a gap between
// the blocks around it.
func Gaps(segs []Segment) []Segment {
	var gaps []Segment
	for i := 0; i+1 < len(segs); i++ {
		a, b := segs[i], segs[i+1]
		lo, hi := a.End, b.Start
		if b.End <= a.Start { // reversed ordering (above/left scans)
			lo, hi = b.End, a.Start
		}
		if hi > lo {
			gaps = append(gaps, Segment{Start: lo, End: hi})
		}
	}
	return gaps
}
