package vision

import (
	"image"
	"math"
)

// labBin coarsely quantizes a Lab color for histogram counting. Bin width
// of 8 units groups anti-aliased fringes with the glyph core.
type labBin struct {
	l, a, b int
}

func binOf(l Lab) labBin {
	return labBin{int(l.L) / 8, int(l.A+128) / 8, int(l.B+128) / 8}
}

// DominantTextColor estimates the foreground color of an OCR crop. The
// border of the crop is assumed to be background; its dominant Lab bin
// and every bin close to it are suppressed, and the most populous
// remaining bin wins. Crops that are all background fall back to the
// mean color.
func DominantTextColor(crop image.Image) RGB {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return RGB{}
	}

	border := maxInt(3, minInt(w, h)*4/100)

	type bucket struct {
		count      int
		sr, sg, sb float64
		lab        Lab
	}
	interior := map[labBin]*bucket{}
	borderHist := map[labBin]int{}
	var meanR, meanG, meanB float64
	total := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r16, g16, b16, _ := crop.At(b.Min.X+x, b.Min.Y+y).RGBA()
			c := RGB{uint8(r16 >> 8), uint8(g16 >> 8), uint8(b16 >> 8)}
			lab := RGBToLab(c)
			bin := binOf(lab)

			meanR += float64(c.R)
			meanG += float64(c.G)
			meanB += float64(c.B)
			total++

			onBorder := x < border || x >= w-border || y < border || y >= h-border
			if onBorder {
				borderHist[bin]++
				continue
			}
			bk := interior[bin]
			if bk == nil {
				bk = &bucket{lab: lab}
				interior[bin] = bk
			}
			bk.count++
			bk.sr += float64(c.R)
			bk.sg += float64(c.G)
			bk.sb += float64(c.B)
		}
	}

	// Dominant background bin from the border pixels.
	var bgBin labBin
	bgCount := -1
	for bin, n := range borderHist {
		if n > bgCount {
			bgCount = n
			bgBin = bin
		}
	}
	bgLab := Lab{
		L: float64(bgBin.l*8) + 4,
		A: float64(bgBin.a*8) - 128 + 4,
		B: float64(bgBin.b*8) - 128 + 4,
	}

	// Text must stand off the background; anything within this Lab
	// distance is treated as background shading.
	const bgSeparation = 18.0

	var best *bucket
	for _, bk := range interior {
		if labDist(bk.lab, bgLab) < bgSeparation {
			continue
		}
		if best == nil || bk.count > best.count {
			best = bk
		}
	}

	if best == nil || best.count < maxInt(10, total/1000) {
		return RGB{
			R: uint8(meanR / float64(total)),
			G: uint8(meanG / float64(total)),
			B: uint8(meanB / float64(total)),
		}
	}
	n := float64(best.count)
	return RGB{
		R: uint8(best.sr / n),
		G: uint8(best.sg / n),
		B: uint8(best.sb / n),
	}
}

func labDist(a, b Lab) float64 {
	dl, da, db := a.L-b.L, a.A-b.A, a.B-b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
