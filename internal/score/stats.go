package score

// A trial passes when its reward rounds to full credit.
const passThreshold = 0.99

// passPowerK is the mean over tasks of the probability that k trials sampled
// without replacement all pass: C(c,k) / C(n,k) for c successes out of n
// trials. Tasks with fewer than k trials contribute zero.
func passPowerK(organized map[string][]float64, k int) float64 {
	if len(organized) == 0 {
		return 0
	}
	var sum float64
	for _, trials := range organized {
		n := len(trials)
		c := successCount(trials)
		if n < k {
			continue
		}
		sum += binomial(c, k) / binomial(n, k)
	}
	return sum / float64(len(organized))
}

// passAtK is the mean over tasks of the probability that at least one of k
// sampled trials passes: 1 - C(n-c,k) / C(n,k).
func passAtK(organized map[string][]float64, k int) float64 {
	if len(organized) == 0 {
		return 0
	}
	var sum float64
	for _, trials := range organized {
		n := len(trials)
		c := successCount(trials)
		if n < k {
			continue
		}
		sum += 1 - binomial(n-c, k)/binomial(n, k)
	}
	return sum / float64(len(organized))
}

func successCount(trials []float64) int {
	count := 0
	for _, reward := range trials {
		if reward >= passThreshold {
			count++
		}
	}
	return count
}

// binomial computes C(n, k) as a float; 0 when k > n.
func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 0; i < k; i++ {
		result = result * float64(n-i) / float64(i+1)
	}
	return result
}
