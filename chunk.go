package ktask

// loadBalanceShift shrinks each chunk so that faster workers can pick up more of them: with a shift of 2, a task is cut
// in about four times as many chunks as it has workers.
const loadBalanceShift = 2

// chunkSize returns how many units each chunk of a task holds. The result is at least minChunkSize and, when larger,
// a multiple of it, for functions that work in fixed-size batches.
func chunkSize(totalSize, minChunkSize, workers int) int {
	if workers == 1 {
		return totalSize
	}
	size := (totalSize / workers) >> loadBalanceShift
	if size > minChunkSize {
		size -= size % minChunkSize
	}
	return max(size, minChunkSize)
}
