package series

// SMA returns the trailing simple moving average over p samples, aligned to
// x. Entries before the window fills are reported as not ok.
func SMA(x []float64, p int) (values []float64, ok []bool) {
	values = make([]float64, len(x))
	ok = make([]bool, len(x))
	if p <= 0 {
		return values, ok
	}

	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			continue
		}
		values[i] = sum / float64(p)
		ok[i] = true
	}
	return values, ok
}

func attachMovingAverages(points []PricePoint) {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	set := func(p int, assign func(i int, v *float64)) {
		values, ok := SMA(closes, p)
		for i := range points {
			if ok[i] {
				v := values[i]
				assign(i, &v)
			} else {
				assign(i, nil)
			}
		}
	}

	set(MAMonth, func(i int, v *float64) { points[i].MA20 = v })
	set(MAQuarter, func(i int, v *float64) { points[i].MA60 = v })
	set(MAYear, func(i int, v *float64) { points[i].MA240 = v })
}
