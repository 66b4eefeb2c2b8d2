package model

import (
	"time"
)

type Problem struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Slug              string            `json:"slug"`
	Description       string            `json:"description"`
	Difficulty        Difficulty        `json:"difficulty"`
	IsActive          bool              `json:"is_active"`
	TimeLimit         float64           `json:"time_limit"`   // seconds of CPU per test
	MemoryLimit       int               `json:"memory_limit"` // MB
	StarterCode       map[string]string `json:"starter_code,omitempty"`
	EditorialSolution *string           `json:"editorial_solution,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	TestCases         []TestCase        `json:"-"`
}

// Public returns a copy safe to send to players while a match is running.
func (p *Problem) Public() *Problem {
	if p == nil {
		return nil
	}
	out := *p
	out.EditorialSolution = nil
	out.TestCases = nil
	return &out
}

// MemoryLimitKb converts the MB limit into the judge's KB unit.
func (p *Problem) MemoryLimitKb() int { return p.MemoryLimit * 1024 }

type TestCase struct {
	ID             string `json:"id"`
	ProblemID      string `json:"problem_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	OrderIndex     int    `json:"order_index"`
}
