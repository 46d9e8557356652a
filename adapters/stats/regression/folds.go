package regression

import (
	"fmt"
	"math/rand"
	"sort"

	"gopattern/domain/core"
)

// KFold shuffles 0..n-1 with the given seed and cuts the permutation into k contiguous
// test folds; the first n%k folds get one extra row. Each fold is returned sorted.
func KFold(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, core.NewInsufficientDataError("k-fold sample", n, k)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	folds := make([][]int, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		fold := append([]int(nil), perm[start:start+size]...)
		sort.Ints(fold)
		folds[i] = fold
		start += size
	}
	return folds, nil
}

// Complement returns the rows of 0..n-1 not in test (test must be sorted).
func Complement(n int, test []int) []int {
	train := make([]int, 0, n-len(test))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(test) && test[j] == i {
			j++
			continue
		}
		train = append(train, i)
	}
	return train
}

// Seq returns 0..n-1.
func Seq(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
