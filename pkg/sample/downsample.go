// Package sample decimates measurement sequences for display.
package sample

// Downsample reduces src to at most maxPoints elements by decimation. The
// first and last elements are always kept. dst is reused when it has enough
// capacity, otherwise a new slice is allocated. A maxPoints below 1 copies
// src unchanged.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	if maxPoints < 1 || len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
		} else {
			dst = make([]T, len(src))
		}
		copy(dst, src)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	if maxPoints == 1 {
		return append(dst, src[0])
	}

	// spread maxPoints indices over [0, len(src)-1]
	step := float64(len(src)-1) / float64(maxPoints-1)
	for i := range maxPoints {
		dst = append(dst, src[int(float64(i)*step+0.5)])
	}
	return dst
}

// Indices returns the source indices Downsample keeps for n elements.
func Indices(n, maxPoints int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Downsample(nil, idx, maxPoints)
}
