package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/autodev/internal/prd"
)

// fakeRunner maps commands to canned results and records what ran.
type fakeRunner struct {
	fail map[string]string // command -> output for failing commands
	ran  []string
}

func (f *fakeRunner) Run(ctx context.Context, command, dir string) (string, error) {
	f.ran = append(f.ran, command)
	if output, ok := f.fail[command]; ok {
		return output, errors.New("exit status 1")
	}
	return "ok", nil
}

func testableStory() *prd.UserStory {
	return &prd.UserStory{
		ID:    "us-1",
		Title: "login endpoint",
		AcceptanceCriteria: prd.CriteriaList{Criteria: []prd.AcceptanceCriterion{
			{ID: "us-1-ac1", Text: "builds", TestCommand: "go build ./..."},
			{ID: "us-1-ac2", Text: "tests pass", TestCommand: "go test ./..."},
		}},
	}
}

func TestVerifyStoryAllPass(t *testing.T) {
	runner := &fakeRunner{}
	v := NewVerifier(runner, nil)

	story := testableStory()
	result := v.VerifyStory(context.Background(), story, t.TempDir())

	assert.Equal(t, OutcomePassed, result.Outcome)
	assert.True(t, result.AllPassed())
	assert.Equal(t, []string{"go build ./...", "go test ./..."}, runner.ran)

	for _, criterion := range story.AcceptanceCriteria.Criteria {
		assert.True(t, criterion.Passes)
		require.NotNil(t, criterion.LastRun)
		assert.Equal(t, criterion.LastRun.Location().String(), "UTC")
	}
}

func TestVerifyStoryPartialFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]string{"go test ./...": "--- FAIL: TestLogin"}}
	v := NewVerifier(runner, nil)

	story := testableStory()
	result := v.VerifyStory(context.Background(), story, t.TempDir())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.False(t, result.AllPassed())

	// Every criterion still ran and got a fresh lastRun stamp.
	assert.Len(t, runner.ran, 2)
	assert.True(t, story.AcceptanceCriteria.Criteria[0].Passes)
	assert.False(t, story.AcceptanceCriteria.Criteria[1].Passes)
	assert.NotNil(t, story.AcceptanceCriteria.Criteria[1].LastRun)
}

func TestVerifyStoryUntestable(t *testing.T) {
	runner := &fakeRunner{}
	v := NewVerifier(runner, nil)

	story := &prd.UserStory{
		ID: "us-2",
		AcceptanceCriteria: prd.CriteriaList{
			Legacy: []string{"looks good to a human"},
		},
	}
	result := v.VerifyStory(context.Background(), story, t.TempDir())

	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.False(t, result.AllPassed(), "unknown is never a pass")
	assert.Empty(t, runner.ran, "untestable stories run no commands")
}

func TestVerifyStoryShellRunner(t *testing.T) {
	v := NewVerifier(nil, nil)

	story := &prd.UserStory{
		ID: "us-3",
		AcceptanceCriteria: prd.CriteriaList{Criteria: []prd.AcceptanceCriterion{
			{ID: "us-3-ac1", Text: "true passes", TestCommand: "true"},
			{ID: "us-3-ac2", Text: "false fails", TestCommand: "false"},
		}},
	}
	result := v.VerifyStory(context.Background(), story, t.TempDir())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	require.Len(t, result.Criteria, 2)
	assert.True(t, result.Criteria[0].Passed)
	assert.False(t, result.Criteria[1].Passed)
}

func TestFailureDetail(t *testing.T) {
	t.Run("formats failing criteria only", func(t *testing.T) {
		result := &Result{
			StoryID: "us-1",
			Outcome: OutcomeFailed,
			Criteria: []CriterionResult{
				{CriterionID: "us-1-ac1", Text: "builds", Command: "go build ./...", Passed: true},
				{CriterionID: "us-1-ac2", Text: "tests pass", Command: "go test ./...", Passed: false, Output: "--- FAIL: TestLogin"},
			},
		}

		detail := FailureDetail(result)
		assert.Contains(t, detail, "us-1-ac2")
		assert.Contains(t, detail, "go test ./...")
		assert.Contains(t, detail, "--- FAIL: TestLogin")
		assert.NotContains(t, detail, "us-1-ac1")
	})

	t.Run("empty for passed or unknown", func(t *testing.T) {
		assert.Empty(t, FailureDetail(nil))
		assert.Empty(t, FailureDetail(&Result{Outcome: OutcomePassed}))
		assert.Empty(t, FailureDetail(&Result{Outcome: OutcomeUnknown}))
	})

	t.Run("truncates long output", func(t *testing.T) {
		long := make([]byte, 5000)
		for i := range long {
			long[i] = 'x'
		}
		result := &Result{
			Outcome: OutcomeFailed,
			Criteria: []CriterionResult{
				{CriterionID: "ac", Text: "t", Command: "c", Output: string(long)},
			},
		}
		detail := FailureDetail(result)
		assert.Contains(t, detail, "(truncated)")
		assert.Less(t, len(detail), 4000)
	})
}
