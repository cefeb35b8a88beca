package teleprompt

import "sort"

// Bucket groups every trajectory produced for one example within a
// step, sorted by score descending, plus the derived statistics the
// viability filter and the global bucket ordering depend on.
type Bucket struct {
	ExampleIndex int
	Trajectories []*Trajectory
}

// NewBucket wraps trajectories for exampleIndex, sorted by score
// descending (ties keep their original relative order).
func NewBucket(exampleIndex int, trajectories []*Trajectory) *Bucket {
	sorted := make([]*Trajectory, len(trajectories))
	copy(sorted, trajectories)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return &Bucket{ExampleIndex: exampleIndex, Trajectories: sorted}
}

// MaxScore is the bucket's best trajectory score, 0 if empty.
func (b *Bucket) MaxScore() float64 {
	if len(b.Trajectories) == 0 {
		return 0
	}
	return b.Trajectories[0].Score
}

// MinScore is the bucket's worst trajectory score, 0 if empty.
func (b *Bucket) MinScore() float64 {
	if len(b.Trajectories) == 0 {
		return 0
	}
	return b.Trajectories[len(b.Trajectories)-1].Score
}

// AvgScore is the bucket's mean trajectory score, 0 if empty.
func (b *Bucket) AvgScore() float64 {
	if len(b.Trajectories) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range b.Trajectories {
		sum += t.Score
	}
	return sum / float64(len(b.Trajectories))
}

// MaxToMinGap is MaxScore - MinScore; the primary key of the global
// bucket ordering and the first half of the viability filter.
func (b *Bucket) MaxToMinGap() float64 { return b.MaxScore() - b.MinScore() }

// MaxToAvgGap is MaxScore - AvgScore; the tertiary ordering key.
func (b *Bucket) MaxToAvgGap() float64 { return b.MaxScore() - b.AvgScore() }

// Viable reports whether the bucket clears the candidate-generation
// gate: a meaningful score spread and at least one
// trajectory that isn't trivially bad.
func (b *Bucket) Viable() bool {
	return b.MaxToMinGap() > 0.01 && b.MaxScore() > 0.1
}

// FormBuckets groups trajectories by floor(exec_id / numCandidates)
// (the batch example index), then orders the resulting buckets
// globally by (-max_to_min_gap, -max_score, -max_to_avg_gap).
func FormBuckets(trajectories []*Trajectory, numCandidates int) []*Bucket {
	grouped := make(map[int][]*Trajectory)
	var order []int
	for _, t := range trajectories {
		idx := t.ExecID / numCandidates
		if _, ok := grouped[idx]; !ok {
			order = append(order, idx)
		}
		grouped[idx] = append(grouped[idx], t)
	}
	sort.Ints(order)

	buckets := make([]*Bucket, 0, len(order))
	for _, idx := range order {
		buckets = append(buckets, NewBucket(idx, grouped[idx]))
	}

	SortBucketsDescending(buckets)
	return buckets
}

// SortBucketsDescending orders buckets by the lexicographic key
// (-max_to_min_gap, -max_score, -max_to_avg_gap), largest first.
func SortBucketsDescending(buckets []*Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, c := buckets[i], buckets[j]
		if a.MaxToMinGap() != c.MaxToMinGap() {
			return a.MaxToMinGap() > c.MaxToMinGap()
		}
		if a.MaxScore() != c.MaxScore() {
			return a.MaxScore() > c.MaxScore()
		}
		return a.MaxToAvgGap() > c.MaxToAvgGap()
	})
}
