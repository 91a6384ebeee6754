package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegments_Forward(t *testing.T) {
	proj := []float64{0, 0, 1, 2, 3, 0, 0, 4, 4, 0}
	segs := Segments(proj, false)
	assert.Equal(t, []Segment{{Start: 2, End: 5}, {Start: 7, End: 9}}, segs)
}

func TestSegments_RunToEdge(t *testing.T) {
	segs := Segments([]float64{1, 1, 0, 1}, false)
	assert.Equal(t, []Segment{{Start: 0, End: 2}, {Start: 3, End: 4}}, segs)
}

func TestSegments_Reverse(t *testing.T) {
	proj := []float64{0, 0, 1, 2, 3, 0, 0, 4, 4, 0}
	segs := Segments(proj, true)
	// Same runs, but the one nearest the far end comes first, with
	// coordinates flipped back to forward form.
	assert.Equal(t, []Segment{{Start: 7, End: 9}, {Start: 2, End: 5}}, segs)
}

func TestSegments_Empty(t *testing.T) {
	assert.Empty(t, Segments([]float64{0, 0, 0}, false))
	assert.Empty(t, Segments(nil, false))
}

func TestSegment_Extent(t *testing.T) {
	assert.Equal(t, 3, Segment{Start: 2, End: 5}.Extent())
}

func TestGaps_Forward(t *testing.T) {
	segs := []Segment{{Start: 0, End: 5}, {Start: 9, End: 12}, {Start: 20, End: 25}}
	assert.Equal(t, []Segment{{Start: 5, End: 9}, {Start: 12, End: 20}}, Gaps(segs))
}

func TestGaps_ReversedOrdering(t *testing.T) {
	// Above/left scans emit segments far-end first; the gap between them
	// still comes out in forward coordinates.
	segs := []Segment{{Start: 20, End: 25}, {Start: 0, End: 5}}
	assert.Equal(t, []Segment{{Start: 5, End: 20}}, Gaps(segs))
}

func TestGaps_Adjacent(t *testing.T) {
	segs := []Segment{{Start: 0, End: 5}, {Start: 5, End: 10}}
	assert.Empty(t, Gaps(segs))
	assert.Empty(t, Gaps(segs[:1]))
	assert.Empty(t, Gaps(nil))
}
