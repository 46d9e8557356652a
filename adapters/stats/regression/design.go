package regression

// Gather copies col[rows] into a dense slice.
func Gather(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}

// PolynomialDesign returns the base design [x .. x^(degree-1)] and the augmented design
// with x^degree appended.
func PolynomialDesign(x []float64, degree int) (base, augmented [][]float64) {
	powers := make([][]float64, degree)
	for d := 1; d <= degree; d++ {
		col := make([]float64, len(x))
		for i, v := range x {
			p := v
			for k := 1; k < d; k++ {
				p *= v
			}
			col[i] = p
		}
		powers[d-1] = col
	}
	return powers[:degree-1], powers
}

// InteractionDesign returns the hierarchical base design for the given main effects (all
// main effects plus every lower-order product) and the augmented design with the full
// product of all of them appended. Two features give [a, b] vs [a, b, ab]; three give
// [a, b, c, ab, ac, bc] vs the same plus abc.
func InteractionDesign(xs ...[]float64) (base, augmented [][]float64) {
	k := len(xs)
	for _, x := range xs {
		base = append(base, x)
	}
	// lower-order products of size 2..k-1, in lexicographic order
	for size := 2; size < k; size++ {
		for _, combo := range combinations(k, size) {
			base = append(base, product(xs, combo))
		}
	}
	all := make([]int, k)
	for i := range all {
		all[i] = i
	}
	augmented = append(append([][]float64(nil), base...), product(xs, all))
	return base, augmented
}

func product(xs [][]float64, idx []int) []float64 {
	n := len(xs[idx[0]])
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		p := 1.0
		for _, j := range idx {
			p *= xs[j][i]
		}
		out[i] = p
	}
	return out
}

func combinations(n, k int) [][]int {
	var out [][]int
	combo := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			out = append(out, append([]int(nil), combo...))
			return
		}
		for i := start; i < n; i++ {
			combo[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}
