package types

// Sum of an integer slice
func Sum(vals []int) (total int) {
	for _, v := range vals {
		total += v
	}
	return
}

// PrefixSum converts counts into CSR style offsets, len(counts)+1 long with a
// leading zero.
func PrefixSum(counts []int) (offsets []int) {
	offsets = make([]int, len(counts)+1)
	for i, c := range counts {
		offsets[i+1] = offsets[i] + c
	}
	return
}
