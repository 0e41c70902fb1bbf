package filterbank

const (
	// polyphase half-band all-pass coefficients of the upper and lower branches
	allPassUpper = 0.64
	allPassLower = 0.17
)

// allPass runs a first order all-pass section over every second sample of
// in, starting from a zeroed state.
func allPass(in []float64, coef float64, out []float64) {
	var state float64
	for idx := range out {
		x := in[idx*2]
		y := coef*x + state
		state = x - coef*y
		out[idx] = y
	}
}

// split decomposes in into its upper and lower halves of the spectrum, each
// at half the sample rate. The upper half comes out spectrally inverted.
func split(in []float64) (hp, lp []float64) {
	half := len(in) / 2
	upper := make([]float64, half)
	lower := make([]float64, half)
	allPass(in, allPassUpper, upper)
	if half > 0 {
		allPass(in[1:], allPassLower, lower)
	}
	for idx := range upper {
		u, l := upper[idx], lower[idx]
		upper[idx] = 0.5 * (u - l)
		lower[idx] = 0.5 * (u + l)
	}
	return upper, lower
}

var (
	highPassZeros = [3]float64{0.4047, -0.8094, 0.4047}
	highPassPoles = [3]float64{1, -0.4734, 0.3430}
)

// highPass removes the content below ~80 Hz from the lowest band.
func highPass(in []float64) []float64 {
	out := make([]float64, len(in))
	var x1, x2, y1, y2 float64
	for idx, x := range in {
		y := highPassZeros[0]*x + highPassZeros[1]*x1 + highPassZeros[2]*x2 -
			highPassPoles[1]*y1 - highPassPoles[2]*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		out[idx] = y
	}
	return out
}
