// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package algorithms

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// RBM is a restricted Boltzmann machine with multinomial (softmax) visible
// units, one softmax group per item over the distinct rating values, and
// binary hidden units. It is trained with one step of contrastive
// divergence on mini-batches of users and scores unseen items by their
// expected rating:
//
//	p(h_j = 1 | v)     = sigmoid(b_j + Σ_i Σ_k v_ik W_ikj)
//	p(v_ik = 1 | h)    = softmax_k(a_ik + Σ_j h_j W_ikj)
//	score(i)           = Σ_k p(v_ik = 1 | h) · value_k
//
// Only observed items take part in the reconstruction of a user. Dropout
// is applied to the hidden activations during training.
type RBM struct {
	BaseAlgorithm

	cfg    RBMConfig
	logger zerolog.Logger

	// Parameters. W is laid out as W[(item*r + k)*h + j].
	itemIDs []int
	values  []float64
	w       []float64
	bv      []float64
	bh      []float64

	// epochsTrained accumulates across checkpoints.
	epochsTrained int
	restored      bool
}

// RBMConfig contains the RBM hyperparameters.
type RBMConfig struct {
	HiddenUnits   int
	Epochs        int
	MinibatchSize int

	// KeepProb is the dropout keep probability for hidden units.
	KeepProb float64

	LearningRate float64

	// InitStdDev is the standard deviation of the initial weights.
	InitStdDev float64

	Seed uint64

	// Workers bounds the goroutines used per mini-batch. Zero means GOMAXPROCS.
	Workers int
}

// DefaultRBMConfig returns the production hyperparameters.
func DefaultRBMConfig() RBMConfig {
	return RBMConfig{
		HiddenUnits:   1200,
		Epochs:        30,
		MinibatchSize: 350,
		KeepProb:      0.7,
		LearningRate:  0.004,
		InitStdDev:    0.01,
		Seed:          42,
	}
}

// RBMState is the checkpoint form of the RBM parameters.
type RBMState struct {
	HiddenUnits   int
	ItemIDs       []int
	RatingValues  []float64
	W             []float64
	VisibleBias   []float64
	HiddenBias    []float64
	EpochsTrained int
}

// NewRBM creates an untrained RBM. Zero config fields take defaults.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRBM(cfg RBMConfig, logger zerolog.Logger) *RBM {
	def := DefaultRBMConfig()
	if cfg.HiddenUnits <= 0 {
		cfg.HiddenUnits = def.HiddenUnits
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.MinibatchSize <= 0 {
		cfg.MinibatchSize = def.MinibatchSize
	}
	if cfg.KeepProb <= 0 || cfg.KeepProb > 1 {
		cfg.KeepProb = def.KeepProb
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.InitStdDev <= 0 {
		cfg.InitStdDev = def.InitStdDev
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &RBM{
		BaseAlgorithm: NewBaseAlgorithm("rbm"),
		cfg:           cfg,
		logger:        logger.With().Str("component", "rbm").Logger(),
	}
}

var _ recommend.Model = (*RBM)(nil)

// NewState returns an empty RBMState to decode a checkpoint into.
func (r *RBM) NewState() any {
	return &RBMState{}
}

// State returns a copy of the current parameters.
func (r *RBM) State() any {
	r.acquirePredictLock()
	defer r.releasePredictLock()

	return &RBMState{
		HiddenUnits:   r.cfg.HiddenUnits,
		ItemIDs:       slices.Clone(r.itemIDs),
		RatingValues:  slices.Clone(r.values),
		W:             slices.Clone(r.w),
		VisibleBias:   slices.Clone(r.bv),
		HiddenBias:    slices.Clone(r.bh),
		EpochsTrained: r.epochsTrained,
	}
}

// Restore adopts checkpoint parameters after checking their shape.
func (r *RBM) Restore(state any) error {
	st, ok := state.(*RBMState)
	if !ok || st == nil {
		return fmt.Errorf("%w: unexpected state type %T", recommend.ErrCheckpointCorruption, state)
	}
	if err := r.checkState(st); err != nil {
		return fmt.Errorf("%w: %w", recommend.ErrCheckpointCorruption, err)
	}

	r.acquireTrainLock()
	defer r.releaseTrainLock()

	r.itemIDs = st.ItemIDs
	r.values = st.RatingValues
	r.w = st.W
	r.bv = st.VisibleBias
	r.bh = st.HiddenBias
	r.epochsTrained = st.EpochsTrained
	r.restored = true
	r.markTrained()
	return nil
}

func (r *RBM) checkState(st *RBMState) error {
	h := r.cfg.HiddenUnits
	if st.HiddenUnits != h {
		return fmt.Errorf("checkpoint has %d hidden units, model has %d", st.HiddenUnits, h)
	}
	n, k := len(st.ItemIDs), len(st.RatingValues)
	if n == 0 || k == 0 {
		return fmt.Errorf("checkpoint has %d items and %d rating values", n, k)
	}
	if len(st.W) != n*k*h || len(st.VisibleBias) != n*k || len(st.HiddenBias) != h {
		return fmt.Errorf("parameter sizes W=%d bv=%d bh=%d do not match %d items x %d values x %d hidden",
			len(st.W), len(st.VisibleBias), len(st.HiddenBias), n, k, h)
	}
	if !strictlyIncreasingInts(st.ItemIDs) || !strictlyIncreasingFloats(st.RatingValues) {
		return fmt.Errorf("item ids or rating values are not sorted and unique")
	}
	for _, v := range st.W {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weights contain non-finite values")
		}
	}
	return nil
}

// visible is one observed rating of a user: model item column and value index.
type visible struct {
	item int
	k    int
}

// Fit trains for the configured number of epochs. When parameters were
// restored from a checkpoint, training resumes from them; items and
// rating values new to the training data get freshly initialised weights.
//
//nolint:gocyclo // epoch and mini-batch loops share the parameter buffers
func (r *RBM) Fit(ctx context.Context, train *recommend.AffinityMatrix) (recommend.FitStats, error) {
	r.acquireTrainLock()
	defer r.releaseTrainLock()

	start := time.Now()
	if train == nil || train.Nonzero() == 0 {
		return recommend.FitStats{}, &recommend.ValidationError{Field: "train", Reason: "no ratings to train on"}
	}

	rng := rand.New(rand.NewPCG(r.cfg.Seed, r.cfg.Seed^uint64(r.epochsTrained)^0x5851f42d4c957f2d)) //nolint:gosec // reproducible training
	resumed := r.restored
	r.alignParameters(train.ItemIDs, train.RatingValues(), rng)

	users := r.encodeRows(train)
	if len(users) == 0 {
		return recommend.FitStats{}, &recommend.ValidationError{Field: "train", Reason: "no ratings match the model columns"}
	}

	h := r.cfg.HiddenUnits
	batchSize := min(r.cfg.MinibatchSize, len(users))
	var mse float64

	for epoch := 0; epoch < r.cfg.Epochs; epoch++ {
		order := rng.Perm(len(users))
		var sqErr float64
		var count int

		for lo := 0; lo < len(order); lo += batchSize {
			if ContextCancelled(ctx) {
				return recommend.FitStats{}, fmt.Errorf("rbm fit interrupted at epoch %d: %w", epoch+1, ctx.Err())
			}
			hi := min(lo+batchSize, len(order))

			batch := make([]*userPass, hi-lo)
			for b := range batch {
				p := &userPass{
					rows:   users[order[lo+b]],
					noise:  make([]float64, 2*h),
					ph0:    make([]float64, h),
					h0:     make([]float64, h),
					ph1:    make([]float64, h),
					recons: nil,
				}
				for i := range p.noise {
					p.noise[i] = rng.Float64()
				}
				batch[b] = p
			}

			r.parallel(len(batch), func(b int) { r.gibbsStep(batch[b]) })

			scale := r.cfg.LearningRate / float64(len(batch))
			r.parallel(h, func(j int) { r.updateHidden(batch, j, scale) })
			r.updateVisibleBias(batch, scale)

			for _, p := range batch {
				s, c := r.reconstructionError(p)
				sqErr += s
				count += c
			}
		}

		if count > 0 {
			mse = sqErr / float64(count)
		}
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return recommend.FitStats{}, fmt.Errorf("rbm diverged at epoch %d", epoch+1)
		}
		r.logger.Debug().
			Int("epoch", epoch+1).
			Float64("mse", mse).
			Msg("epoch complete")
	}

	r.epochsTrained += r.cfg.Epochs
	r.restored = false
	r.markTrained()

	return recommend.FitStats{
		Epochs:     r.cfg.Epochs,
		FinalError: mse,
		Resumed:    resumed,
		Duration:   time.Since(start),
	}, nil
}

// userPass holds one user's activations for a mini-batch.
type userPass struct {
	rows   []visible
	noise  []float64 // dropout draws then sampling draws, h each
	ph0    []float64
	h0     []float64
	ph1    []float64
	recons []float64 // len(rows)*r softmax probabilities
}

func (r *RBM) gibbsStep(p *userPass) {
	h := r.cfg.HiddenUnits
	nv := len(r.values)
	keep := r.cfg.KeepProb

	r.hiddenProbs(p.rows, nil, p.ph0)
	for j := 0; j < h; j++ {
		if p.noise[j] < keep {
			p.ph0[j] = min(p.ph0[j]/keep, 1)
		} else {
			p.ph0[j] = 0
		}
		if p.noise[h+j] < p.ph0[j] {
			p.h0[j] = 1
		}
	}

	p.recons = make([]float64, len(p.rows)*nv)
	logits := make([]float64, nv)
	for n, v := range p.rows {
		for k := 0; k < nv; k++ {
			col := v.item*nv + k
			sum := r.bv[col]
			row := r.w[col*h : col*h+h]
			for j, hj := range p.h0 {
				if hj != 0 {
					sum += row[j]
				}
			}
			logits[k] = sum
		}
		softmax(logits, p.recons[n*nv:(n+1)*nv])
	}

	r.hiddenProbs(p.rows, p.recons, p.ph1)
}

// hiddenProbs computes p(h | v) for the observed rows. With probs nil the
// visible units are the one-hot ratings, otherwise the reconstruction.
func (r *RBM) hiddenProbs(rows []visible, probs, out []float64) {
	h := r.cfg.HiddenUnits
	nv := len(r.values)
	copy(out, r.bh)
	for n, v := range rows {
		if probs == nil {
			if v.k < 0 {
				continue
			}
			col := v.item*nv + v.k
			addTo(out, r.w[col*h:col*h+h], 1)
			continue
		}
		for k := 0; k < nv; k++ {
			col := v.item*nv + k
			addTo(out, r.w[col*h:col*h+h], probs[n*nv+k])
		}
	}
	for j := range out {
		out[j] = sigmoid(out[j])
	}
}

// updateHidden applies the CD-1 gradient to hidden unit j. Distinct j touch
// disjoint weights so calls may run concurrently.
func (r *RBM) updateHidden(batch []*userPass, j int, scale float64) {
	h := r.cfg.HiddenUnits
	nv := len(r.values)
	var dbh float64
	for _, p := range batch {
		pos, neg := p.ph0[j], p.ph1[j]
		dbh += pos - neg
		for n, v := range p.rows {
			base := v.item * nv
			r.w[(base+v.k)*h+j] += scale * pos
			for k := 0; k < nv; k++ {
				r.w[(base+k)*h+j] -= scale * p.recons[n*nv+k] * neg
			}
		}
	}
	r.bh[j] += scale * dbh
}

func (r *RBM) updateVisibleBias(batch []*userPass, scale float64) {
	nv := len(r.values)
	for _, p := range batch {
		for n, v := range p.rows {
			base := v.item * nv
			r.bv[base+v.k] += scale
			for k := 0; k < nv; k++ {
				r.bv[base+k] -= scale * p.recons[n*nv+k]
			}
		}
	}
}

func (r *RBM) reconstructionError(p *userPass) (float64, int) {
	nv := len(r.values)
	var sum float64
	for n, v := range p.rows {
		var expected float64
		for k := 0; k < nv; k++ {
			expected += p.recons[n*nv+k] * r.values[k]
		}
		d := r.values[v.k] - expected
		sum += d * d
	}
	return sum, len(p.rows)
}

// parallel runs fn(0..n-1) on up to Workers goroutines and waits.
func (r *RBM) parallel(n int, fn func(int)) {
	workers := min(r.cfg.Workers, n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// alignParameters makes the parameter columns cover items and values,
// keeping restored weights and initialising new ones.
func (r *RBM) alignParameters(items []int, values []float64, rng *rand.Rand) {
	h := r.cfg.HiddenUnits
	newItems := unionInts(r.itemIDs, items)
	newValues := unionFloats(r.values, values)
	if slices.Equal(newItems, r.itemIDs) && slices.Equal(newValues, r.values) && r.w != nil {
		return
	}

	nv := len(newValues)
	w := make([]float64, len(newItems)*nv*h)
	bv := make([]float64, len(newItems)*nv)
	for i := range w {
		w[i] = rng.NormFloat64() * r.cfg.InitStdDev
	}
	bh := make([]float64, h)

	if r.w != nil {
		itemAt := make(map[int]int, len(newItems))
		for i, id := range newItems {
			itemAt[id] = i
		}
		valueAt := make(map[float64]int, nv)
		for k, v := range newValues {
			valueAt[v] = k
		}
		oldNV := len(r.values)
		for oi, id := range r.itemIDs {
			ni := itemAt[id]
			for ko, v := range r.values {
				nk := valueAt[v]
				src, dst := oi*oldNV+ko, ni*nv+nk
				copy(w[dst*h:dst*h+h], r.w[src*h:src*h+h])
				bv[dst] = r.bv[src]
			}
		}
		copy(bh, r.bh)
		r.logger.Info().
			Int("items", len(r.itemIDs)).
			Int("new_items", len(newItems)-len(r.itemIDs)).
			Int("new_values", nv-len(r.values)).
			Msg("extended checkpoint parameters")
	}

	r.itemIDs, r.values, r.w, r.bv, r.bh = newItems, newValues, w, bv, bh
}

// encodeRows maps each non-empty matrix row onto model columns. Ratings
// whose value the model does not know get k = -1.
func (r *RBM) encodeRows(m *recommend.AffinityMatrix) [][]visible {
	itemAt := make(map[int]int, len(r.itemIDs))
	for i, id := range r.itemIDs {
		itemAt[id] = i
	}
	valueAt := make(map[float64]int, len(r.values))
	for k, v := range r.values {
		valueAt[v] = k
	}

	out := make([][]visible, 0, len(m.Rows))
	for _, row := range m.Rows {
		var vis []visible
		for _, c := range row {
			item, ok := itemAt[m.ItemIDs[c.Col]]
			if !ok {
				continue
			}
			k, ok := valueAt[c.Value]
			if !ok {
				k = -1
			}
			vis = append(vis, visible{item: item, k: k})
		}
		if len(vis) > 0 {
			out = append(out, vis)
		}
	}
	return out
}

// PredictTopK scores, for every test row with at least one rating, all
// model items the row does not contain and keeps the k best.
func (r *RBM) PredictTopK(ctx context.Context, test *recommend.AffinityMatrix, k int) (map[int][]recommend.ScoredItem, error) {
	r.acquirePredictLock()
	defer r.releasePredictLock()

	if r.w == nil {
		return nil, recommend.ErrNotFitted
	}

	itemAt := make(map[int]int, len(r.itemIDs))
	for i, id := range r.itemIDs {
		itemAt[id] = i
	}
	valueAt := make(map[float64]int, len(r.values))
	for kk, v := range r.values {
		valueAt[v] = kk
	}

	type job struct {
		userID int
		rows   []visible
	}
	var jobs []job
	for row, cells := range test.Rows {
		if len(cells) == 0 {
			continue
		}
		var vis []visible
		for _, c := range cells {
			item, ok := itemAt[test.ItemIDs[c.Col]]
			if !ok {
				continue
			}
			kk, ok := valueAt[c.Value]
			if !ok {
				kk = -1
			}
			vis = append(vis, visible{item: item, k: kk})
		}
		jobs = append(jobs, job{userID: test.UserIDs[row], rows: vis})
	}

	results := make([][]recommend.ScoredItem, len(jobs))
	r.parallel(len(jobs), func(n int) {
		if ContextCancelled(ctx) {
			return
		}
		results[n] = r.scoreUser(jobs[n].rows, k)
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rbm predict interrupted: %w", err)
	}

	out := make(map[int][]recommend.ScoredItem, len(jobs))
	for n, j := range jobs {
		out[j.userID] = results[n]
	}
	return out, nil
}

func (r *RBM) scoreUser(rows []visible, k int) []recommend.ScoredItem {
	h := r.cfg.HiddenUnits
	nv := len(r.values)

	ph := make([]float64, h)
	r.hiddenProbs(rows, nil, ph)

	skip := make(map[int]struct{}, len(rows))
	for _, v := range rows {
		skip[v.item] = struct{}{}
	}

	logits := make([]float64, nv)
	probs := make([]float64, nv)
	scored := make([]recommend.ScoredItem, 0, len(r.itemIDs))
	for i, id := range r.itemIDs {
		if _, seen := skip[i]; seen {
			continue
		}
		for kk := 0; kk < nv; kk++ {
			col := i*nv + kk
			logits[kk] = r.bv[col] + dot(ph, r.w[col*h:col*h+h])
		}
		softmax(logits, probs)
		var score float64
		for kk, p := range probs {
			score += p * r.values[kk]
		}
		if math.IsNaN(score) {
			score = 0
		}
		scored = append(scored, recommend.ScoredItem{ItemID: id, Score: score})
	}
	return rankScores(scored, k)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softmax writes the normalized exponentials of in to out.
func softmax(in, out []float64) {
	m := math.Inf(-1)
	for _, v := range in {
		m = max(m, v)
	}
	var sum float64
	for i, v := range in {
		out[i] = math.Exp(v - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

func addTo(dst, src []float64, scale float64) {
	for j, v := range src {
		dst[j] += scale * v
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for j := range a {
		s += a[j] * b[j]
	}
	return s
}

func unionInts(a, b []int) []int {
	out := slices.Concat(a, b)
	sort.Ints(out)
	return slices.Compact(out)
}

func unionFloats(a, b []float64) []float64 {
	out := slices.Concat(a, b)
	sort.Float64s(out)
	return slices.Compact(out)
}

func strictlyIncreasingInts(s []int) bool {
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}

func strictlyIncreasingFloats(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if !(s[i] > s[i-1]) {
			return false
		}
	}
	return true
}
