package prd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriteriaListUnmarshal(t *testing.T) {
	t.Run("structured criteria", func(t *testing.T) {
		var cl CriteriaList
		err := json.Unmarshal([]byte(`[
			{"id":"ac1","text":"compiles","testCommand":"go build ./...","passes":false,"lastRun":null},
			{"id":"ac2","text":"tests pass","testCommand":"go test ./...","passes":true,"lastRun":null}
		]`), &cl)
		require.NoError(t, err)
		require.Len(t, cl.Criteria, 2)
		assert.Empty(t, cl.Legacy)
		assert.Equal(t, "ac1", cl.Criteria[0].ID)
		assert.Equal(t, "go build ./...", cl.Criteria[0].TestCommand)
		assert.True(t, cl.Testable())
	})

	t.Run("legacy string criteria", func(t *testing.T) {
		var cl CriteriaList
		err := json.Unmarshal([]byte(`["works on my machine","looks good"]`), &cl)
		require.NoError(t, err)
		assert.Empty(t, cl.Criteria)
		require.Len(t, cl.Legacy, 2)
		assert.False(t, cl.Testable())
	})

	t.Run("mixed list is not testable", func(t *testing.T) {
		var cl CriteriaList
		err := json.Unmarshal([]byte(`[{"id":"ac1","text":"x","testCommand":"true"},"eyeball it"]`), &cl)
		require.NoError(t, err)
		assert.Len(t, cl.Criteria, 1)
		assert.Len(t, cl.Legacy, 1)
		assert.False(t, cl.Testable())
	})

	t.Run("criterion without test command is not testable", func(t *testing.T) {
		var cl CriteriaList
		err := json.Unmarshal([]byte(`[{"id":"ac1","text":"manual check"}]`), &cl)
		require.NoError(t, err)
		assert.False(t, cl.Testable())
	})

	t.Run("not an array", func(t *testing.T) {
		var cl CriteriaList
		err := json.Unmarshal([]byte(`{"id":"ac1"}`), &cl)
		assert.Error(t, err)
	})
}

func TestCriteriaListRoundTrip(t *testing.T) {
	t.Run("legacy stays strings", func(t *testing.T) {
		var cl CriteriaList
		require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &cl))
		out, err := json.Marshal(cl)
		require.NoError(t, err)
		assert.JSONEq(t, `["a","b"]`, string(out))
	})

	t.Run("structured stays objects", func(t *testing.T) {
		var cl CriteriaList
		require.NoError(t, json.Unmarshal([]byte(`[{"id":"ac1","text":"x","testCommand":"true","passes":false,"lastRun":null}]`), &cl))
		out, err := json.Marshal(cl)
		require.NoError(t, err)

		var back CriteriaList
		require.NoError(t, json.Unmarshal(out, &back))
		require.Len(t, back.Criteria, 1)
		assert.Equal(t, "ac1", back.Criteria[0].ID)
	})
}

func TestCriteriaListAllPass(t *testing.T) {
	cl := CriteriaList{Criteria: []AcceptanceCriterion{
		{ID: "ac1", TestCommand: "true", Passes: true},
		{ID: "ac2", TestCommand: "true", Passes: false},
	}}
	assert.False(t, cl.AllPass())

	cl.Criteria[1].Passes = true
	assert.True(t, cl.AllPass())

	// Legacy entries can never contribute a pass.
	cl.Legacy = []string{"manual"}
	assert.False(t, cl.AllPass())
}

func TestOrderedStories(t *testing.T) {
	doc := &Document{
		Project: "demo",
		UserStories: []*UserStory{
			{ID: "a"},
			{ID: "b", Priority: 2},
			{ID: "c", Priority: 1},
			{ID: "d"},
		},
	}

	ordered := doc.OrderedStories()
	ids := []string{ordered[0].ID, ordered[1].ID, ordered[2].ID, ordered[3].ID}
	// Explicit priorities first, then document order.
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids)

	// Document itself is untouched.
	assert.Equal(t, "a", doc.UserStories[0].ID)
}

func TestAllComplete(t *testing.T) {
	doc := &Document{Project: "demo"}
	assert.False(t, doc.AllComplete(), "empty PRD is not complete")

	doc.UserStories = []*UserStory{{ID: "a", Passes: true}, {ID: "b", Passes: false}}
	assert.False(t, doc.AllComplete())

	doc.UserStories[1].Passes = true
	assert.True(t, doc.AllComplete())
}
