// Package scoring turns judged results and timing into a match score.
package scoring

import "math"

const (
	correctnessWeight = 70.0
	efficiencyCap     = 20.0
	runtimeDivisorMs  = 100.0
	memoryDivisorKb   = 10240.0
	speedWeight       = 0.1
)

type Input struct {
	PassedTests   int
	TotalTests    int
	AvgRuntimeMs  float64
	AvgMemoryKb   float64
	ElapsedMs     float64 // from match start to the player's first submission
	TimeLimitMs   float64
	PenaltyPoints int
	IsLate        bool
}

type Breakdown struct {
	Correctness float64 `json:"correctness"`
	Efficiency  float64 `json:"efficiency"`
	Speed       float64 `json:"speed"`
	Penalty     int     `json:"penalty"`
	Raw         float64 `json:"raw"`
	Score       int     `json:"score"`
}

// Policy holds product knobs that are not part of the formula itself.
type Policy struct {
	ClampNegative bool
}

func Score(in Input, p Policy) int { return Compute(in, p).Score }

// Compute returns the score with its components. Late submissions score 0.
func Compute(in Input, p Policy) Breakdown {
	b := Breakdown{Penalty: in.PenaltyPoints}

	if in.TotalTests > 0 {
		b.Correctness = float64(in.PassedTests) / float64(in.TotalTests) * correctnessWeight
	}
	b.Efficiency = clamp(efficiencyCap-in.AvgRuntimeMs/runtimeDivisorMs, 0, efficiencyCap)/2 +
		clamp(efficiencyCap-in.AvgMemoryKb/memoryDivisorKb, 0, efficiencyCap)/2
	if in.TimeLimitMs > 0 {
		b.Speed = math.Max(0, 100-100*in.ElapsedMs/in.TimeLimitMs) * speedWeight
	}
	b.Raw = b.Correctness + b.Efficiency + b.Speed - float64(in.PenaltyPoints)

	if in.IsLate {
		return b
	}
	b.Score = roundHalfUp(b.Raw)
	if p.ClampNegative && b.Score < 0 {
		b.Score = 0
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// roundHalfUp rounds .5 toward +Inf, so -2.5 becomes -2.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
