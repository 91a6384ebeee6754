package vision

import "math"

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

// Palette maps each color word of the command language to the RGB
// variants users mean by it on real UIs. "Blue" covers everything from
// hyperlink blue to steel-blue button fills.
var Palette = map[string][]RGB{
	"black":  {{0, 0, 0}, {25, 25, 25}, {50, 50, 50}, {10, 10, 10}, {35, 35, 35}},
	"white":  {{245, 245, 245}, {255, 255, 255}, {230, 230, 230}, {240, 240, 245}, {250, 250, 250}, {200, 200, 200}, {180, 180, 180}},
	"red":    {{255, 0, 0}, {200, 0, 0}, {180, 50, 50}, {220, 20, 60}, {255, 80, 80}, {145, 0, 0}, {150, 15, 15}, {175, 35, 35}},
	"green":  {{0, 255, 0}, {0, 200, 0}, {0, 128, 0}, {34, 108, 32}, {60, 180, 75}, {150, 175, 105}},
	"blue":   {{0, 0, 255}, {0, 0, 200}, {79, 141, 193}, {50, 58, 108}, {130, 255, 255}, {70, 130, 180}, {110, 100, 210}},
	"yellow": {{255, 255, 0}, {250, 210, 0}, {240, 240, 50}, {248, 255, 132}, {220, 220, 0}, {163, 163, 44}},
	"orange": {{255, 165, 0}, {255, 140, 0}, {255, 180, 50}, {255, 200, 100}, {230, 120, 0}},
	"brown":  {{150, 75, 0}, {139, 69, 19}, {160, 82, 45}, {165, 42, 42}, {128, 64, 32}},
	"gray":   {{128, 128, 128}, {75, 75, 75}, {100, 100, 100}, {150, 150, 150}},
	"purple": {{128, 0, 128}, {160, 120, 200}, {150, 100, 180}, {180, 130, 220}, {120, 0, 160}},
}

var paletteLab = func() map[string][]Lab {
	m := make(map[string][]Lab, len(Palette))
	for name, rgbs := range Palette {
		labs := make([]Lab, len(rgbs))
		for i, c := range rgbs {
			labs[i] = RGBToLab(c)
		}
		m[name] = labs
	}
	return m
}()

// ColorName classifies an RGB color against the palette using CIEDE2000
// distance. Near-white grays report as white; OCR crops of light themes
// land there constantly.
func ColorName(c RGB) string {
	lab := RGBToLab(c)
	best := ""
	bestDist := math.Inf(1)
	for name, labs := range paletteLab {
		for _, p := range labs {
			if d := CIEDE2000(lab, p); d < bestDist {
				bestDist = d
				best = name
			}
		}
	}
	if best == "gray" && c.R > 230 && c.G > 230 && c.B > 230 {
		return "white"
	}
	return best
}

// Lab is a CIE L*a*b* color under the D65 white point.
type Lab struct {
	L, A, B float64
}

func srgbToLinear(c uint8) float64 {
	v := float64(c) / 255.0
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// RGBToLab converts sRGB to L*a*b* via XYZ.
func RGBToLab(c RGB) Lab {
	r, g, b := srgbToLinear(c.R), srgbToLinear(c.G), srgbToLinear(c.B)
	x := r*0.4124564 + g*0.3575761 + b*0.1804375
	y := r*0.2126729 + g*0.7151522 + b*0.0721750
	z := r*0.0193339 + g*0.1191920 + b*0.9503041

	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787037*t + 16.0/116.0
	}
	fx, fy, fz := f(x/0.95047), f(y/1.0), f(z/1.08883)
	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// CIEDE2000 computes the perceptual color difference between two Lab
// colors, kL=kC=kH=1.
func CIEDE2000(c1, c2 Lab) float64 {
	const pow7of25 = 25 * 25 * 25 * 25 * 25 * 25 * 25

	C1 := math.Hypot(c1.A, c1.B)
	C2 := math.Hypot(c2.A, c2.B)
	avgC := 0.5 * (C1 + C2)
	avgC7 := math.Pow(avgC, 7)
	G := 0.5 * (1 - math.Sqrt(avgC7/(avgC7+pow7of25)))

	a1p, a2p := (1+G)*c1.A, (1+G)*c2.A
	C1p := math.Hypot(a1p, c1.B)
	C2p := math.Hypot(a2p, c2.B)
	h1p := math.Mod(rad2deg(math.Atan2(c1.B, a1p))+360, 360)
	h2p := math.Mod(rad2deg(math.Atan2(c2.B, a2p))+360, 360)

	dLp := c2.L - c1.L
	dCp := C2p - C1p

	var dhp float64
	if C1p*C2p != 0 {
		dh := h2p - h1p
		switch {
		case math.Abs(dh) <= 180:
			dhp = dh
		case dh > 180:
			dhp = dh - 360
		default:
			dhp = dh + 360
		}
	}
	dHp := 2 * math.Sqrt(C1p*C2p) * math.Sin(deg2rad(dhp/2))

	avgLp := 0.5 * (c1.L + c2.L)
	avgCp := 0.5 * (C1p + C2p)

	var avgHp float64
	if C1p*C2p == 0 {
		avgHp = h1p + h2p
	} else {
		dh := math.Abs(h1p - h2p)
		switch {
		case dh <= 180:
			avgHp = (h1p + h2p) / 2
		case h1p+h2p < 360:
			avgHp = (h1p + h2p + 360) / 2
		default:
			avgHp = (h1p + h2p - 360) / 2
		}
	}

	T := 1 - 0.17*math.Cos(deg2rad(avgHp-30)) +
		0.24*math.Cos(deg2rad(2*avgHp)) +
		0.32*math.Cos(deg2rad(3*avgHp+6)) -
		0.20*math.Cos(deg2rad(4*avgHp-63))

	deltaRo := 30 * math.Exp(-math.Pow((avgHp-275)/25, 2))
	avgCp7 := math.Pow(avgCp, 7)
	Rc := 2 * math.Sqrt(avgCp7/(avgCp7+pow7of25))
	Sl := 1 + (0.015*math.Pow(avgLp-50, 2))/math.Sqrt(20+math.Pow(avgLp-50, 2))
	Sc := 1 + 0.045*avgCp
	Sh := 1 + 0.015*avgCp*T
	Rt := -math.Sin(deg2rad(2*deltaRo)) * Rc

	return math.Sqrt(
		math.Pow(dLp/Sl, 2) +
			math.Pow(dCp/Sc, 2) +
			math.Pow(dHp/Sh, 2) +
			Rt*(dCp/Sc)*(dHp/Sh))
}

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
func deg2rad(d float64) float64 { return d * math.Pi / 180 }
