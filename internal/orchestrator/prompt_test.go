package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/autodev/internal/prd"
)

func TestBuildPrompt(t *testing.T) {
	story := &prd.UserStory{
		ID:          "us-1",
		Title:       "Add login endpoint",
		Description: "Users log in with email and password.",
		AcceptanceCriteria: prd.CriteriaList{Criteria: []prd.AcceptanceCriterion{
			{ID: "us-1-ac1", Text: "returns 200", TestCommand: "curl -fsS localhost:8080/login"},
		}},
	}

	t.Run("first attempt", func(t *testing.T) {
		prompt := BuildPrompt(story, 1, "")
		assert.Contains(t, prompt, "Add login endpoint")
		assert.Contains(t, prompt, "Users log in with email and password.")
		assert.Contains(t, prompt, "us-1-ac1")
		assert.Contains(t, prompt, "Verified by: curl -fsS localhost:8080/login")
		assert.NotContains(t, prompt, "Previous Attempt")
	})

	t.Run("retry carries failure detail", func(t *testing.T) {
		prompt := BuildPrompt(story, 2, "criterion us-1-ac1 failed: connection refused")
		assert.Contains(t, prompt, "Previous Attempt (1) Failed")
		assert.Contains(t, prompt, "connection refused")
	})

	t.Run("legacy criteria are listed without commands", func(t *testing.T) {
		legacy := &prd.UserStory{
			ID:                 "us-2",
			Title:              "Docs",
			AcceptanceCriteria: prd.CriteriaList{Legacy: []string{"reviewed by the team"}},
		}
		prompt := BuildPrompt(legacy, 1, "")
		assert.Contains(t, prompt, "reviewed by the team")
		assert.NotContains(t, prompt, "Verified by:")
	})
}

func TestArgsForCLI(t *testing.T) {
	prompt := "do the work"

	t.Run("claude requests a structured stream", func(t *testing.T) {
		args := argsForCLI("claude", prompt, "claude-sonnet-4")
		assert.Contains(t, args, "stream-json")
		assert.Contains(t, args, "claude-sonnet-4")
		assert.Contains(t, args, prompt)
	})

	t.Run("aider runs non-interactive", func(t *testing.T) {
		args := argsForCLI("aider", prompt, "gpt-4.1")
		assert.Contains(t, args, "--message")
		assert.Contains(t, args, "--yes")
	})

	t.Run("codex uses exec", func(t *testing.T) {
		args := argsForCLI("codex", prompt, "o3")
		assert.Equal(t, "exec", args[0])
	})

	t.Run("unknown cli degrades to a bare prompt", func(t *testing.T) {
		args := argsForCLI("something-else", prompt, "m")
		assert.Equal(t, []string{"-p", prompt}, args)
	})
}
