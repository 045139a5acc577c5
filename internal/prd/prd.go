// Package prd models the Project Requirements Document: an ordered list of
// user stories with acceptance criteria that drives an autodev run.
//
// The orchestrator only ever mutates the passes and lastRun fields; titles,
// descriptions, and test commands are treated as read-only input.
package prd

import (
	"encoding/json"
	"fmt"
	"time"
)

// Complexity categorizes how hard a story is expected to be.
type Complexity string

// Valid complexity values.
const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// AcceptanceCriterion is a single machine-checkable condition a story must
// satisfy. TestCommand runs via the shell from the project root; exit 0 is
// the only pass signal.
type AcceptanceCriterion struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	TestCommand string     `json:"testCommand,omitempty"`
	Passes      bool       `json:"passes"`
	LastRun     *time.Time `json:"lastRun"`
}

// Testable reports whether this criterion can be verified automatically.
func (c *AcceptanceCriterion) Testable() bool {
	return c.TestCommand != ""
}

// CriteriaList holds a story's acceptance criteria. On the wire this is
// either a legacy array of plain strings (non-testable) or an array of
// AcceptanceCriterion objects; both forms round-trip unchanged.
type CriteriaList struct {
	// Criteria holds structured criterion objects.
	Criteria []AcceptanceCriterion

	// Legacy holds plain-string criteria from older PRDs. Stories with
	// legacy criteria are never auto-verified.
	Legacy []string
}

// UnmarshalJSON accepts both the legacy string form and the structured form.
func (cl *CriteriaList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("acceptanceCriteria must be an array: %w", err)
	}

	cl.Criteria = nil
	cl.Legacy = nil

	for i, elem := range raw {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			cl.Legacy = append(cl.Legacy, s)
			continue
		}

		var c AcceptanceCriterion
		if err := json.Unmarshal(elem, &c); err != nil {
			return fmt.Errorf("acceptanceCriteria[%d]: expected string or criterion object: %w", i, err)
		}
		cl.Criteria = append(cl.Criteria, c)
	}

	return nil
}

// MarshalJSON writes the list back in the form it was read: legacy strings
// stay strings, structured criteria stay objects. Mixed lists serialize
// structured entries first.
func (cl CriteriaList) MarshalJSON() ([]byte, error) {
	if len(cl.Criteria) == 0 && len(cl.Legacy) > 0 {
		return json.Marshal(cl.Legacy)
	}
	if len(cl.Legacy) == 0 {
		// Marshal as plain slice; an empty list serializes as [].
		if cl.Criteria == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(cl.Criteria)
	}

	out := make([]interface{}, 0, len(cl.Criteria)+len(cl.Legacy))
	for _, c := range cl.Criteria {
		out = append(out, c)
	}
	for _, s := range cl.Legacy {
		out = append(out, s)
	}
	return json.Marshal(out)
}

// Testable reports whether every criterion in the list can be auto-verified.
// A list with legacy strings, criteria missing test commands, or no criteria
// at all is not testable.
func (cl *CriteriaList) Testable() bool {
	if len(cl.Legacy) > 0 || len(cl.Criteria) == 0 {
		return false
	}
	for i := range cl.Criteria {
		if !cl.Criteria[i].Testable() {
			return false
		}
	}
	return true
}

// Len returns the total criterion count, legacy strings included.
func (cl *CriteriaList) Len() int {
	return len(cl.Criteria) + len(cl.Legacy)
}

// AllPass reports whether every structured criterion passes. Legacy entries
// have no pass state and make this false.
func (cl *CriteriaList) AllPass() bool {
	if len(cl.Legacy) > 0 || len(cl.Criteria) == 0 {
		return false
	}
	for i := range cl.Criteria {
		if !cl.Criteria[i].Passes {
			return false
		}
	}
	return true
}

// UserStory is one unit of work in the PRD.
type UserStory struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Complexity         Complexity   `json:"complexity"`
	Priority           int          `json:"priority,omitempty"`
	Passes             bool         `json:"passes"`
	AcceptanceCriteria CriteriaList `json:"acceptanceCriteria"`
}

// Testable reports whether the story can be auto-verified.
func (s *UserStory) Testable() bool {
	return s.AcceptanceCriteria.Testable()
}

// Document is the root PRD object.
type Document struct {
	Project          string       `json:"project"`
	BranchName       string       `json:"branchName,omitempty"`
	CLI              string       `json:"cli,omitempty"`
	CLIFallbackOrder []string     `json:"cliFallbackOrder,omitempty"`
	UserStories      []*UserStory `json:"userStories"`
}

// OrderedStories returns stories in execution order: explicit numeric
// priority first (ascending, zero means unset), then document order.
// The returned slice shares story pointers with the document.
func (d *Document) OrderedStories() []*UserStory {
	ordered := make([]*UserStory, len(d.UserStories))
	copy(ordered, d.UserStories)

	// Stable insertion sort keeps document order for equal priorities.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && storyLess(ordered[j], ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

// storyLess orders by explicit priority; unset (0) priorities sort after
// any explicit priority and keep document order among themselves.
func storyLess(a, b *UserStory) bool {
	if a.Priority == b.Priority {
		return false
	}
	if a.Priority == 0 {
		return false
	}
	if b.Priority == 0 {
		return true
	}
	return a.Priority < b.Priority
}

// AllComplete reports whether every story has passed.
func (d *Document) AllComplete() bool {
	if len(d.UserStories) == 0 {
		return false
	}
	for _, s := range d.UserStories {
		if !s.Passes {
			return false
		}
	}
	return true
}
