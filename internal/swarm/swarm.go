// Package swarm implements pheromone-trail decay, weighted multi-factor bid
// scoring, vote tallying across several aggregation methods, payoff
// calculation, and ACO-style task routing. All functions are pure: input
// slices/maps are never mutated.
package swarm

import (
	"encoding/json"
	"math"
	"sort"
)

// PheromoneTrail is a decaying (worker, task-type) preference signal.
type PheromoneTrail struct {
	ID        string  `json:"id"`
	Intensity float64 `json:"intensity"`
	CreatedAt int64   `json:"createdAt"`
}

// DecayResult is the output of ProcessDecay.
type DecayResult struct {
	Survivors []PheromoneTrail `json:"survivors"`
	RemovedID []string         `json:"removedId"`
	Removed   int              `json:"removed"`
}

// ProcessDecay multiplies every trail's intensity by (1 - decayRate) and
// drops any trail whose decayed intensity falls below minIntensity.
func ProcessDecay(trails []PheromoneTrail, decayRate, minIntensity float64) DecayResult {
	var survivors []PheromoneTrail
	var removedIDs []string

	for _, trail := range trails {
		decayed := trail.Intensity * (1 - decayRate)
		if decayed < minIntensity {
			removedIDs = append(removedIDs, trail.ID)
			continue
		}
		trail.Intensity = decayed
		survivors = append(survivors, trail)
	}

	return DecayResult{Survivors: survivors, RemovedID: removedIDs, Removed: len(removedIDs)}
}

// Bid is one bidder's offer for a task.
type Bid struct {
	ID                string  `json:"id"`
	Bidder            string  `json:"bidder"`
	Amount            float64 `json:"amount"`
	Confidence        float64 `json:"confidence"`
	Reputation        float64 `json:"reputation"`
	EstimatedDuration float64 `json:"estimatedDuration"`
}

// ScoredBid is a Bid annotated with its composite score.
type ScoredBid struct {
	Bid
	CompositeScore float64 `json:"compositeScore"`
}

// EvaluateBids scores and ranks bids by a weighted blend of normalized
// reputation, confidence, and bid amount. preferLower inverts the bid-amount
// normalization (lower bids score higher). Returns bids sorted by composite
// score descending; the winner is the first entry.
func EvaluateBids(bids []Bid, wRep, wConf, wBid float64, preferLower bool) []ScoredBid {
	if len(bids) == 0 {
		return nil
	}

	w := wRep + wConf + wBid

	var maxBid, maxRep float64
	for _, b := range bids {
		if b.Amount > maxBid {
			maxBid = b.Amount
		}
		if b.Reputation > maxRep {
			maxRep = b.Reputation
		}
	}

	scored := make([]ScoredBid, 0, len(bids))
	for _, b := range bids {
		var repNorm float64
		if maxRep > 0 {
			repNorm = b.Reputation / maxRep
		}

		var bidNorm float64
		if maxBid > 0 {
			if preferLower {
				bidNorm = 1 - b.Amount/maxBid
			} else {
				bidNorm = b.Amount / maxBid
			}
		}

		var composite float64
		if w != 0 {
			composite = repNorm*wRep/w + b.Confidence*wConf/w + bidNorm*wBid/w
		}

		scored = append(scored, ScoredBid{Bid: b, CompositeScore: composite})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].CompositeScore > scored[j].CompositeScore
	})

	return scored
}

// Vote is one ballot. For ranked methods, Value holds a JSON-encoded array
// of option names (a ranking); otherwise Value is the chosen option name.
type Vote struct {
	Voter  string  `json:"voter"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// TallyEntry is one option's accumulated score in a TallyResult.
type TallyEntry struct {
	Option string  `json:"option"`
	Tally  float64 `json:"tally"`
}

// TallyResult is the output of TallyVotes.
type TallyResult struct {
	Winner            string       `json:"winner"` // empty unless QuorumMet
	Tallies           []TallyEntry `json:"tallies"`
	QuorumMet         bool         `json:"quorumMet"`
	TotalVotes        int          `json:"totalVotes"`
	WeightedTotal     float64      `json:"weightedTotal"`
	ParticipationRate float64      `json:"participationRate"`
}

// TallyVotes aggregates votes over options using method ("majority",
// "supermajority", "unanimous", or "ranked"). Ranked ballots award Borda
// points (rank i, 0-based, out of n gets n-i points); a vote whose Value
// does not decode as a JSON array of option names is silently dropped.
//
// ParticipationRate preserves the original, non-normalized formula
// len(votes)/totalWeight rather than redefining it as a true [0,1]
// ratio; the formula is not dimensionally a participation share, but
// the decision was to keep the original behavior rather than silently
// "fix" ambiguous intent.
func TallyVotes(votes []Vote, options []string, method string, quorumValue float64) TallyResult {
	tally := make(map[string]float64, len(options))
	for _, o := range options {
		tally[o] = 0
	}

	var totalWeight float64
	var counted int

	for _, v := range votes {
		if method == "ranked" {
			var ranking []string
			if err := json.Unmarshal([]byte(v.Value), &ranking); err != nil {
				continue
			}
			n := len(ranking)
			validRanking := true
			for _, opt := range ranking {
				if _, ok := tally[opt]; !ok {
					validRanking = false
					break
				}
			}
			if !validRanking {
				continue
			}
			for i, opt := range ranking {
				tally[opt] += float64(n-i) * v.Weight
			}
		} else {
			if _, ok := tally[v.Value]; !ok {
				continue
			}
			tally[v.Value] += v.Weight
		}
		totalWeight += v.Weight
		counted++
	}

	var winner string
	var winnerTally float64
	first := true
	entries := make([]TallyEntry, 0, len(options))
	for _, o := range options {
		entries = append(entries, TallyEntry{Option: o, Tally: tally[o]})
		if first || tally[o] > winnerTally {
			winner = o
			winnerTally = tally[o]
			first = false
		}
	}

	var winnerRatio float64
	if totalWeight > 0 {
		winnerRatio = winnerTally / totalWeight
	}

	var quorumMet bool
	switch method {
	case "supermajority":
		quorumMet = winnerRatio >= 2.0/3.0
	case "unanimous":
		quorumMet = winnerRatio >= 1.0
	default:
		quorumMet = winnerRatio > 0.5 || len(options) <= 2
	}

	var participationRate float64
	if totalWeight > 0 {
		participationRate = float64(len(votes)) / totalWeight
	}

	result := TallyResult{
		Tallies:           entries,
		QuorumMet:         quorumMet,
		TotalVotes:        counted,
		WeightedTotal:     totalWeight,
		ParticipationRate: participationRate,
	}
	if quorumMet {
		result.Winner = winner
	}
	return result
}

// PayoffResult is the output of CalculatePayoff.
type PayoffResult struct {
	Payoffs          map[string]float64 `json:"payoffs"`
	DominantStrategy string             `json:"dominantStrategy"`
}

// CalculatePayoff computes each strategy's expected payoff as the mean of
// its row in matrix (indexed in the same order as strategies), assuming a
// uniform mix over the opponent's responses. The dominant strategy is the
// argmax.
func CalculatePayoff(strategies []string, matrix [][]float64) PayoffResult {
	payoffs := make(map[string]float64, len(strategies))
	var dominant string
	var best float64
	first := true

	for i, s := range strategies {
		var mean float64
		if i < len(matrix) && len(matrix[i]) > 0 {
			var sum float64
			for _, v := range matrix[i] {
				sum += v
			}
			mean = sum / float64(len(matrix[i]))
		}
		payoffs[s] = mean
		if first || mean > best {
			dominant = s
			best = mean
			first = false
		}
	}

	return PayoffResult{Payoffs: payoffs, DominantStrategy: dominant}
}

// TrailKey builds the (worker, task) key RouteTasks looks up in its trails
// map.
func TrailKey(worker, task string) string { return worker + "::" + task }

// RouteTasks greedily assigns each task (in order) to the worker maximizing
// trailIntensity^alpha / (1 + load), then increments that worker's load.
// trails is keyed by TrailKey(worker, task); unknown pairs default to an
// exploration floor of 0.1. Returns an empty map for an empty worker list.
// This is a greedy heuristic, not an optimal assignment solver, and is
// kept that way intentionally rather than substituted for a solver.
func RouteTasks(tasks, workers []string, trails map[string]float64, alpha float64) map[string]string {
	if len(workers) == 0 {
		return map[string]string{}
	}

	load := make(map[string]int, len(workers))
	for _, w := range workers {
		load[w] = 0
	}

	assignment := make(map[string]string, len(tasks))
	for _, task := range tasks {
		var bestWorker string
		var bestScore float64
		first := true

		for _, w := range workers {
			intensity, ok := trails[TrailKey(w, task)]
			if !ok {
				intensity = 0.1
			}
			score := math.Pow(intensity, alpha) / (1 + float64(load[w]))
			if first || score > bestScore {
				bestWorker = w
				bestScore = score
				first = false
			}
		}

		assignment[task] = bestWorker
		load[bestWorker]++
	}

	return assignment
}
