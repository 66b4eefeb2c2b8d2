package model

import "time"

type TestStatus string

const (
	TestAccepted            TestStatus = "Accepted"
	TestWrongAnswer         TestStatus = "WrongAnswer"
	TestTimeLimitExceeded   TestStatus = "TimeLimitExceeded"
	TestCompilationError    TestStatus = "CompilationError"
	TestRuntimeError        TestStatus = "RuntimeError"
	TestMemoryLimitExceeded TestStatus = "MemoryLimitExceeded"
	TestUnknown             TestStatus = "Unknown"
)

type Submission struct {
	ID            string       `json:"id"`
	MatchID       string       `json:"match_id"`
	UserID        string       `json:"user_id"`
	ProblemID     string       `json:"problem_id"`
	Code          string       `json:"code,omitempty"`
	Language      string       `json:"language"`
	PenaltyPoints int          `json:"penalty_points"`
	IsLate        bool         `json:"is_late"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	EvaluatedAt   *time.Time   `json:"evaluated_at,omitempty"`
	Score         *int         `json:"score,omitempty"`
	PassedTests   int          `json:"passed_tests"`
	TotalTests    int          `json:"total_tests"`
	RuntimeMs     float64      `json:"runtime_ms"`
	MemoryKb      float64      `json:"memory_kb"`
	TestResults   []TestResult `json:"test_results,omitempty"`
	Error         *string      `json:"error,omitempty"` // set when the judge could not evaluate
}

func (s *Submission) Evaluated() bool { return s != nil && s.EvaluatedAt != nil }

// TestResult is one judged test case. Error is only set on the single marker
// entry written when the whole batch failed.
type TestResult struct {
	TestCaseID string     `json:"test_case_id,omitempty"`
	Status     TestStatus `json:"status,omitempty"`
	RuntimeMs  float64    `json:"runtime"`
	MemoryKb   float64    `json:"memory"`
	Stdout     *string    `json:"stdout,omitempty"`
	Stderr     *string    `json:"stderr,omitempty"`
	Message    *string    `json:"message,omitempty"`
	IsHidden   bool       `json:"is_hidden"`
	Error      string     `json:"error,omitempty"`
}

// Evaluation is the set of fields written onto a Submission exactly once.
type Evaluation struct {
	Score       int
	PassedTests int
	TotalTests  int
	RuntimeMs   float64
	MemoryKb    float64
	TestResults []TestResult
	Error       *string
	EvaluatedAt time.Time
}

// FailedEvaluation is the zero-score, error-flagged outcome used when judging failed.
func FailedEvaluation(reason string, at time.Time) *Evaluation {
	return &Evaluation{
		Score:       0,
		TestResults: []TestResult{{Error: reason}},
		Error:       &reason,
		EvaluatedAt: at,
	}
}

// PenaltyForPrior is the penalty carried by a submission that follows prior
// earlier ones from the same player in the same match.
func PenaltyForPrior(prior int) int { return 2 * prior }
