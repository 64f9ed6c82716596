// Package engine implements the multi-dimensional IRT adaptive scorer: item
// probability/information, proficiency updates, next-item selection, the
// stopping rule, and session summaries. It is pure and stateless - every
// input is passed in, nothing here talks to a store.
package engine

import (
	"math"

	"adaptivetest/internal/domain"
)

const (
	proficiencyMin = -3.0
	proficiencyMax = 3.0
	probClampLow   = 0.01
	probClampHigh  = 0.99
)

// Config holds the engine's tunables. Zero-value fields are filled with
// defaults by NewEngine.
type Config struct {
	LearningRate float64
}

func DefaultConfig() Config {
	return Config{LearningRate: 0.1}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultConfig().LearningRate
	}
	return &Engine{cfg: cfg}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// Probability returns P(correct | theta, question), clamped to keep
// downstream gradients well-conditioned.
func (e *Engine) Probability(theta []float64, q domain.Question) float64 {
	a := q.Discrimination
	if a == 0 {
		a = 1.0
	}
	z := a*dot(q.Concepts, theta) - q.Difficulty
	return clamp(sigmoid(z), probClampLow, probClampHigh)
}

// Information returns the Fisher information of question q at theta -
// higher means more informative about the student's current estimate.
func (e *Engine) Information(theta []float64, q domain.Question) float64 {
	a := q.Discrimination
	if a == 0 {
		a = 1.0
	}
	p := e.Probability(theta, q)
	return a * a * p * (1 - p)
}

// UpdateProficiency performs one online gradient-ascent step. response is 1
// for correct, 0 for incorrect. Only concepts the question loads on move;
// the result is elementwise clamped to [-3, 3].
func (e *Engine) UpdateProficiency(theta []float64, q domain.Question, response float64) []float64 {
	p := e.Probability(theta, q)
	a := q.Discrimination
	if a == 0 {
		a = 1.0
	}
	errTerm := (response - p) * p * (1 - p) * a * e.cfg.LearningRate

	out := make([]float64, len(theta))
	copy(out, theta)
	for i := range out {
		if i < len(q.Concepts) && q.Concepts[i] != 0 {
			out[i] = clamp(out[i]+errTerm*q.Concepts[i], proficiencyMin, proficiencyMax)
		}
	}
	return out
}

// SelectNextQuestion picks the unanswered question maximizing Fisher
// information against theta. Ties are broken by first-encountered order in
// candidates. Returns false if every candidate has already been answered.
func (e *Engine) SelectNextQuestion(theta []float64, candidates []domain.Question, answered map[string]bool) (domain.Question, bool) {
	var best domain.Question
	bestInfo := -1.0
	found := false

	for _, q := range candidates {
		if answered[q.ID] {
			continue
		}
		info := e.Information(theta, q)
		if !found || info > bestInfo {
			best = q
			bestInfo = info
			found = true
		}
	}
	return best, found
}

// ShouldContinue applies the stopping rule: unconditional bounds first, then
// a type-specific branch once within [min, max).
func (e *Engine) ShouldContinue(criteria domain.EndCriteria, answered int, history []domain.Response) bool {
	minQ := criteria.MinQuestions
	if minQ <= 0 {
		minQ = 5
	}
	maxQ := criteria.MaxQuestions
	if maxQ <= 0 {
		maxQ = 20
	}

	if answered < minQ {
		return true
	}
	if answered >= maxQ {
		return false
	}

	switch criteria.Type {
	case domain.EndFixedLength, "":
		return true
	case domain.EndPrecision:
		threshold := criteria.PrecisionThreshold
		if threshold == 0 {
			threshold = 0.3
		}
		return e.estimatePrecision(history) > threshold
	case domain.EndClassification:
		threshold := criteria.ClassificationThreshold
		if threshold == 0 {
			threshold = 0.8
		}
		return e.estimateClassificationConfidence(history) < threshold
	default:
		return false
	}
}

// estimatePrecision returns 1/(1+mean_variance) of theta across the last 5
// proficiency_after snapshots, or 1.0 (keep going) with fewer than 2.
func (e *Engine) estimatePrecision(history []domain.Response) float64 {
	snaps := lastNSnapshots(history, 5)
	if len(snaps) < 2 {
		return 1.0
	}
	k := len(snaps[0])
	var meanVar float64
	for i := 0; i < k; i++ {
		var mean float64
		for _, s := range snaps {
			mean += s[i]
		}
		mean /= float64(len(snaps))

		var variance float64
		for _, s := range snaps {
			d := s[i] - mean
			variance += d * d
		}
		variance /= float64(len(snaps))
		meanVar += variance
	}
	meanVar /= float64(k)
	return 1.0 / (1.0 + meanVar)
}

// estimateClassificationConfidence is mean(|theta_i|)/2, clipped to 1.0,
// using the latest snapshot.
func (e *Engine) estimateClassificationConfidence(history []domain.Response) float64 {
	if len(history) == 0 {
		return 0
	}
	theta := history[len(history)-1].ProficiencyAfter
	if len(theta) == 0 {
		return 0
	}
	var sum float64
	for _, v := range theta {
		sum += math.Abs(v)
	}
	conf := (sum / float64(len(theta))) / 2.0
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func lastNSnapshots(history []domain.Response, n int) [][]float64 {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	out := make([][]float64, 0, len(history)-start)
	for _, r := range history[start:] {
		out = append(out, r.ProficiencyAfter)
	}
	return out
}

// Summarize produces the final accuracy/gain/efficiency report for a
// session given its full response history.
func (e *Engine) Summarize(initial, final []float64, history []domain.Response) domain.Summary {
	correct := 0
	for _, r := range history {
		if r.Correct {
			correct++
		}
	}
	total := len(history)

	change := make([]float64, len(initial))
	var absSum float64
	for i := range change {
		if i < len(final) {
			change[i] = final[i] - initial[i]
			absSum += math.Abs(change[i])
		}
	}
	learningGain := 0.0
	if len(change) > 0 {
		learningGain = absSum / float64(len(change))
	}

	var stepSum float64
	for _, r := range history {
		var sq float64
		n := len(r.ProficiencyAfter)
		if len(r.ProficiencyBefore) < n {
			n = len(r.ProficiencyBefore)
		}
		for i := 0; i < n; i++ {
			d := r.ProficiencyAfter[i] - r.ProficiencyBefore[i]
			sq += d * d
		}
		stepSum += math.Sqrt(sq)
	}
	efficiency := 0.0
	if total > 0 {
		efficiency = stepSum / float64(total) / float64(total)
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	return domain.Summary{
		TotalQuestions:     total,
		CorrectCount:       correct,
		Accuracy:           accuracy,
		InitialProficiency: initial,
		FinalProficiency:   final,
		ProficiencyChange:  change,
		LearningGain:       learningGain,
		Efficiency:         efficiency,
	}
}
