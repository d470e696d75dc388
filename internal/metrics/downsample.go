package metrics

// Downsample partitions points (a sequence of equal-length numeric tuples)
// into consecutive chunks of size factor (the last chunk may be smaller) and
// replaces each chunk with the arithmetic mean of each of its columns.
// factor is clamped to >= 1.
func Downsample(points [][]float64, factor int) [][]float64 {
	if factor < 1 {
		factor = 1
	}
	if len(points) == 0 {
		return nil
	}

	cols := len(points[0])
	out := make([][]float64, 0, (len(points)+factor-1)/factor)

	for start := 0; start < len(points); start += factor {
		end := start + factor
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]

		means := make([]float64, cols)
		for _, row := range chunk {
			for c := 0; c < cols && c < len(row); c++ {
				means[c] += row[c]
			}
		}
		n := float64(len(chunk))
		for c := 0; c < cols; c++ {
			means[c] /= n
		}
		out = append(out, means)
	}

	return out
}
