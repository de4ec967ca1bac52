package gmm

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const lloydIterations = 20

// initParams seeds EM from a k-means partition: k-means++ picks the starting centers, so
// repeated prices never start two components on the same value, then Lloyd iterations
// refine the partition. Each cluster gives one component's weight, mean and variance.
// Clusters with fewer than 2 points take the variance of the whole sample.
func initParams(samples []float64, k int, rng *rand.Rand, reg float64) (weights, means, variances []float64) {
	n := len(samples)
	centers := seedCenters(samples, k, rng)

	labels := make([]int, n)
	for it := 0; it < lloydIterations; it++ {
		changed := false
		for i, x := range samples {
			j := nearest(centers, x)
			if it == 0 || j != labels[i] {
				changed = true
			}
			labels[i] = j
		}
		if !changed {
			break
		}

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, x := range samples {
			sums[labels[i]] += x
			counts[labels[i]]++
		}
		for j := range centers {
			// an empty cluster keeps its center
			if counts[j] > 0 {
				centers[j] = sums[j] / float64(counts[j])
			}
		}
	}

	clusters := make([][]float64, k)
	for i, x := range samples {
		clusters[labels[i]] = append(clusters[labels[i]], x)
	}

	total := stat.MomentAbout(2, samples, stat.Mean(samples, nil), nil)
	weights = make([]float64, k)
	means = make([]float64, k)
	variances = make([]float64, k)
	for j, cluster := range clusters {
		weights[j] = float64(len(cluster))/float64(n) + minComponentMass
		means[j] = centers[j]
		variances[j] = total + reg
		if len(cluster) >= 2 {
			means[j] = stat.Mean(cluster, nil)
			variances[j] = stat.MomentAbout(2, cluster, means[j], nil) + reg
		}
	}
	floats.Scale(1/floats.Sum(weights), weights)
	return weights, means, variances
}

// seedCenters is k-means++: each next center is a sample drawn with probability
// proportional to its squared distance from the nearest chosen center.
func seedCenters(samples []float64, k int, rng *rand.Rand) []float64 {
	n := len(samples)
	centers := make([]float64, 0, k)
	centers = append(centers, samples[rng.Intn(n)])

	dist := make([]float64, n)
	for len(centers) < k {
		sum, last := 0.0, -1
		for i, x := range samples {
			d := x - centers[nearest(centers, x)]
			dist[i] = d * d
			sum += dist[i]
			if dist[i] > 0 {
				last = i
			}
		}
		// every sample sits on a center
		if last < 0 {
			centers = append(centers, samples[rng.Intn(n)])
			continue
		}

		pick := last
		u := rng.Float64() * sum
		for i, d := range dist {
			u -= d
			if u < 0 && d > 0 {
				pick = i
				break
			}
		}
		centers = append(centers, samples[pick])
	}
	return centers
}

func nearest(centers []float64, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centers {
		if d := math.Abs(x - c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}
