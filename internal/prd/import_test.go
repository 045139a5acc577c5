package prd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = "# Demo Project\n" +
	"\n" +
	"## Story: Add login endpoint [complex]\n" +
	"\n" +
	"Users need to log in with email and password.\n" +
	"\n" +
	"- Returns 200 for valid credentials\n" +
	"  ```test\n" +
	"  curl -fsS localhost:8080/login\n" +
	"  ```\n" +
	"- Rejects a bad password\n" +
	"\n" +
	"## Story: Write onboarding docs\n" +
	"\n" +
	"- Docs reviewed by the team\n"

func TestImportMarkdown(t *testing.T) {
	doc, err := ImportMarkdown([]byte(sampleMarkdown))
	require.NoError(t, err)

	assert.Equal(t, "Demo Project", doc.Project)
	require.Len(t, doc.UserStories, 2)

	first := doc.UserStories[0]
	assert.Equal(t, "us-1", first.ID)
	assert.Equal(t, "Add login endpoint", first.Title)
	assert.Equal(t, ComplexityComplex, first.Complexity)
	assert.Contains(t, first.Description, "log in with email")
	require.Len(t, first.AcceptanceCriteria.Criteria, 2)
	assert.Equal(t, "curl -fsS localhost:8080/login", first.AcceptanceCriteria.Criteria[0].TestCommand)
	assert.Equal(t, "Returns 200 for valid credentials", first.AcceptanceCriteria.Criteria[0].Text)
	assert.Empty(t, first.AcceptanceCriteria.Criteria[1].TestCommand)
	assert.False(t, first.Testable(), "criterion without a test command keeps the story untestable")

	second := doc.UserStories[1]
	assert.Equal(t, ComplexityMedium, second.Complexity, "complexity defaults to medium")
	require.Len(t, second.AcceptanceCriteria.Criteria, 1)
}

func TestImportMarkdownErrors(t *testing.T) {
	t.Run("no project heading", func(t *testing.T) {
		_, err := ImportMarkdown([]byte("## Story: orphan\n- something\n"))
		assert.ErrorIs(t, err, ErrMalformedPRD)
	})

	t.Run("no stories", func(t *testing.T) {
		_, err := ImportMarkdown([]byte("# Project\n\njust prose\n"))
		assert.ErrorIs(t, err, ErrMalformedPRD)
	})
}
