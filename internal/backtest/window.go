package backtest

// forwardMin returns, for every start i in [0, len(x)-w], the minimum of
// x[i:i+w]. It keeps a deque of indices whose values increase from head to
// tail, so each index is pushed and popped at most once.
func forwardMin(x []float64, w int) []float64 {
	n := len(x)
	if w <= 0 || w > n {
		return nil
	}

	out := make([]float64, n-w+1)
	dq := make([]int, 0, n)
	head := 0

	for j := 0; j < n; j++ {
		for len(dq) > head && x[dq[len(dq)-1]] >= x[j] {
			dq = dq[:len(dq)-1]
		}
		dq = append(dq, j)

		start := j - w + 1
		if start < 0 {
			continue
		}
		if dq[head] < start {
			head++
		}
		out[start] = x[dq[head]]
	}

	return out
}
