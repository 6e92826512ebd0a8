package touchup

import "math"

const histBins = 256

// tiling splits one axis of length n into g nearly equal tiles.
type tiling struct {
	bounds  []int     // g+1 edges
	centers []float64 // g centres
}

func newTiling(n, g int) tiling {
	if g > n {
		g = n
	}
	t := tiling{bounds: make([]int, g+1), centers: make([]float64, g)}
	for i := 0; i <= g; i++ {
		t.bounds[i] = i * n / g
	}
	for i := 0; i < g; i++ {
		t.centers[i] = float64(t.bounds[i]+t.bounds[i+1]-1) / 2
	}
	return t
}

// locate returns the two tiles whose centres surround p and the weight of
// the second one. Outside the outermost centres both tiles are the same.
func (t tiling) locate(p int) (int, int, float64) {
	x := float64(p)
	last := len(t.centers) - 1
	if x <= t.centers[0] {
		return 0, 0, 0
	}
	if x >= t.centers[last] {
		return last, last, 0
	}
	i := 0
	for i < last-1 && x >= t.centers[i+1] {
		i++
	}
	return i, i + 1, (x - t.centers[i]) / (t.centers[i+1] - t.centers[i])
}

// clahe equalises a lightness plane in [0,1] with 256-bin histograms per tile,
// clipping each bin at clip times the mean bin height and redistributing the
// excess evenly. Pixels blend the mappings of the four nearest tile centres.
func clahe(l []float64, w, h int, clip float64, grid int) []float64 {
	tx := newTiling(w, grid)
	ty := newTiling(h, grid)
	gx, gy := len(tx.centers), len(ty.centers)

	luts := make([][histBins]float64, gx*gy)
	for j := 0; j < gy; j++ {
		for i := 0; i < gx; i++ {
			luts[j*gx+i] = tileLUT(l, w,
				tx.bounds[i], tx.bounds[i+1],
				ty.bounds[j], ty.bounds[j+1],
				clip)
		}
	}

	out := make([]float64, len(l))
	for y := 0; y < h; y++ {
		j0, j1, wy := ty.locate(y)
		for x := 0; x < w; x++ {
			i0, i1, wx := tx.locate(x)
			v := l[y*w+x]
			top := (1-wx)*mapLUT(&luts[j0*gx+i0], v) + wx*mapLUT(&luts[j0*gx+i1], v)
			bottom := (1-wx)*mapLUT(&luts[j1*gx+i0], v) + wx*mapLUT(&luts[j1*gx+i1], v)
			out[y*w+x] = (1-wy)*top + wy*bottom
		}
	}
	return out
}

// binOf rounds v to the nearest of the 256 bin centres.
func binOf(v float64) int {
	b := int(v*(histBins-1) + 0.5)
	if b < 0 {
		return 0
	}
	if b >= histBins {
		return histBins - 1
	}
	return b
}

// tileLUT builds the clipped cumulative mapping of one tile.
func tileLUT(l []float64, w, x0, x1, y0, y1 int, clip float64) [histBins]float64 {
	var hist [histBins]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[binOf(l[y*w+x])]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	limit := int(clip * float64(area) / histBins)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for b := range hist {
		if hist[b] > limit {
			excess += hist[b] - limit
			hist[b] = limit
		}
	}
	batch := excess / histBins
	residual := excess - batch*histBins
	for b := range hist {
		hist[b] += batch
	}
	if residual > 0 {
		step := histBins / residual
		if step < 1 {
			step = 1
		}
		for b := 0; b < histBins && residual > 0; b += step {
			hist[b]++
			residual--
		}
	}

	var lut [histBins]float64
	sum := 0
	for b := range hist {
		sum += hist[b]
		lut[b] = float64(sum) / float64(area)
	}
	return lut
}

// mapLUT looks v up in the table, interpolating between neighbouring bins so
// that 16-bit lightness keeps its precision.
func mapLUT(lut *[histBins]float64, v float64) float64 {
	f := v * (histBins - 1)
	if f <= 0 {
		return lut[0]
	}
	if f >= histBins-1 {
		return lut[histBins-1]
	}
	lo := int(math.Floor(f))
	frac := f - float64(lo)
	return lut[lo]*(1-frac) + lut[lo+1]*frac
}
