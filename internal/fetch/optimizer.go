package fetch

// chunkSizes are the discrete "day" period buckets the pricehistory API
// accepts, largest first. The sizes are consecutive integers 1..5 plus 10,
// so greedy selection always covers any remaining count exactly.
var chunkSizes = [...]int{10, 5, 4, 3, 2, 1}

// OptimalChunkDays picks the largest API-legal chunk for the remaining day
// count. Returns 0 when nothing remains, which terminates the fetch loop.
func OptimalChunkDays(remainingDays int) int {
	for _, size := range chunkSizes {
		if remainingDays >= size {
			return size
		}
	}
	return 0
}
