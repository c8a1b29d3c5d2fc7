package embedding

import "math"

// MeanPool averages per-token hidden states into one vector per batch
// item, weighted by the attention mask. hiddenStates is the flat
// [batchSize * seqLen * dim] output of the model; masks holds one row of
// seqLen mask values per batch item. Masked positions contribute to
// neither the sum nor the divisor. An item whose mask sums to zero yields
// the zero vector rather than dividing by zero.
func MeanPool(hiddenStates []float32, masks [][]int64, batchSize, seqLen, dim int) [][]float32 {
	pooled := make([][]float32, batchSize)
	for b := 0; b < batchSize; b++ {
		vec := make([]float32, dim)
		var count float32

		for s := 0; s < seqLen; s++ {
			if masks[b][s] == 0 {
				continue
			}
			count++
			offset := (b*seqLen + s) * dim
			for d := 0; d < dim; d++ {
				vec[d] += hiddenStates[offset+d]
			}
		}

		if count > 0 {
			for d := 0; d < dim; d++ {
				vec[d] /= count
			}
		}
		pooled[b] = vec
	}
	return pooled
}

// L2Normalize scales a vector to unit Euclidean length in place and
// returns it. A zero vector is returned unchanged, never NaN.
func L2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
