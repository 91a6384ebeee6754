package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect_Center(t *testing.T) {
	assert.Equal(t, Point{X: 15, Y: 25}, Rect{X: 10, Y: 20, W: 10, H: 10}.Center())
	assert.Equal(t, Point{X: 0, Y: 0}, Rect{}.Center())
}

func TestRect_Offset(t *testing.T) {
	r := Rect{X: 5, Y: 5, W: 10, H: 10}
	assert.Equal(t, Rect{X: 105, Y: 55, W: 10, H: 10}, r.Offset(Point{X: 100, Y: 50}))
}

func TestRect_Empty(t *testing.T) {
	assert.True(t, Rect{}.Empty())
	assert.True(t, Rect{W: 10}.Empty())
	assert.True(t, Rect{W: 10, H: -1}.Empty())
	assert.False(t, Rect{W: 1, H: 1}.Empty())
}

func TestRect_ImageRoundTrip(t *testing.T) {
	r := Rect{X: 3, Y: 4, W: 20, H: 30}
	assert.Equal(t, image.Rect(3, 4, 23, 34), r.ToImage())
	assert.Equal(t, r, FromImage(r.ToImage()))
}

func TestRect_Clip(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	assert.Equal(t, Rect{X: 90, Y: 90, W: 10, H: 10}, Rect{X: 90, Y: 90, W: 50, H: 50}.Clip(bounds))
	assert.True(t, Rect{X: 200, Y: 200, W: 10, H: 10}.Clip(bounds).Empty())
}

func TestPoint_Add(t *testing.T) {
	assert.Equal(t, Point{X: 3, Y: -1}, Point{X: 1, Y: 1}.Add(Point{X: 2, Y: -2}))
}
