// Package models defines the core domain types for stint.
package models

import (
	"math"
	"sort"
	"time"
)

// DefaultIntervalSeconds is the standard work interval length (25 minutes).
const DefaultIntervalSeconds = 1500

// Millis is an epoch-millisecond timestamp, the unit used throughout the
// persisted documents.
type Millis = int64

// Now returns the current time in epoch milliseconds.
func Now() Millis {
	return time.Now().UnixMilli()
}

// Commit is a record of minutes logged against a project at a point in time.
// CommittedAt doubles as the lookup key for edits within a project, so two
// commits landing on the exact same millisecond cannot be addressed
// individually.
type Commit struct {
	CommittedAt Millis `json:"committed_at"`
	Amount      int64  `json:"amount"`
}

// Project is a named bucket of tracked time with an ordered commit history.
// Name is also the stable identifier; renaming does not re-key the project.
type Project struct {
	Name       string   `json:"name"`
	Time       int64    `json:"time"`
	Commits    []Commit `json:"commits"`
	CreatedAt  Millis   `json:"created_at"`
	UpdatedAt  Millis   `json:"updated_at"`
	TimeBudget *int64   `json:"time_budget,omitempty"`
	Deadline   *Millis  `json:"deadline,omitempty"`
}

// ProjectMap is the projects document: project identifier -> record.
type ProjectMap map[string]*Project

// TimerSnapshot is the persisted state of one project's countdown. Live
// countdown handles are process-local and never stored.
type TimerSnapshot struct {
	Time        int64  `json:"time"`
	InitialTime int64  `json:"initialTime"`
	Running     bool   `json:"running"`
	LastUpdated Millis `json:"lastUpdated"`
}

// TimerMap is the timers document: project identifier -> snapshot.
type TimerMap map[string]TimerSnapshot

// CommitSum returns the sum of the project's commit amounts. The Time field
// must always equal this value.
func (p *Project) CommitSum() int64 {
	var sum int64
	for _, c := range p.Commits {
		sum += c.Amount
	}
	return sum
}

// SortCommits orders the commit history newest-first.
func (p *Project) SortCommits() {
	sort.SliceStable(p.Commits, func(i, j int) bool {
		return p.Commits[i].CommittedAt > p.Commits[j].CommittedAt
	})
}

// BudgetPercent reports progress against the time budget, or false when no
// budget is set.
func (p *Project) BudgetPercent() (float64, bool) {
	if p.TimeBudget == nil || *p.TimeBudget <= 0 {
		return 0, false
	}
	return float64(p.Time) / float64(*p.TimeBudget) * 100, true
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	cp := *p
	cp.Commits = append([]Commit(nil), p.Commits...)
	if p.TimeBudget != nil {
		v := *p.TimeBudget
		cp.TimeBudget = &v
	}
	if p.Deadline != nil {
		v := *p.Deadline
		cp.Deadline = &v
	}
	return &cp
}

// Clone returns a deep copy of the projects document.
func (m ProjectMap) Clone() ProjectMap {
	out := make(ProjectMap, len(m))
	for id, p := range m {
		out[id] = p.Clone()
	}
	return out
}

// NormalizeMinutes rounds a possibly fractional minute amount to a whole
// number of minutes. Commit amounts are always accumulated as integers to
// keep aggregates drift-free.
func NormalizeMinutes(amount float64) int64 {
	return int64(math.Round(amount))
}
