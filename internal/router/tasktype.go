// Package router recommends which model should handle a task, combining a
// static per-mode capability matrix with live quota state and optional
// learned performance history.
package router

import "strings"

// TaskType is a closed category of development work.
type TaskType string

// Task types.
const (
	TaskComplexIntegration TaskType = "complex-integration"
	TaskMathematical       TaskType = "mathematical"
	TaskBackendAPI         TaskType = "backend-api"
	TaskBackendLogic       TaskType = "backend-logic"
	TaskFrontendUI         TaskType = "frontend-ui"
	TaskFrontendLogic      TaskType = "frontend-logic"
	TaskDatabase           TaskType = "database"
	TaskTesting            TaskType = "testing"
	TaskDocumentation      TaskType = "documentation"
	TaskRefactoring        TaskType = "refactoring"
	TaskBugfix             TaskType = "bugfix"
	TaskDevOps             TaskType = "devops"
	TaskConfig             TaskType = "config"
	TaskUnknown            TaskType = "unknown"
)

// AllTaskTypes lists every task type in a stable order.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskComplexIntegration, TaskMathematical, TaskBackendAPI,
		TaskBackendLogic, TaskFrontendUI, TaskFrontendLogic, TaskDatabase,
		TaskTesting, TaskDocumentation, TaskRefactoring, TaskBugfix,
		TaskDevOps, TaskConfig, TaskUnknown,
	}
}

// taskKeywords maps task types to scoring keywords. First match set with
// the highest hit count wins; ties resolve in the order below.
var taskKeywords = []struct {
	taskType TaskType
	words    []string
}{
	{TaskBugfix, []string{"bug", "fix", "broken", "regression", "crash", "error when"}},
	{TaskTesting, []string{"test", "coverage", "unit test", "integration test", "e2e"}},
	{TaskDatabase, []string{"database", "migration", "schema", "sql", "query", "index"}},
	{TaskFrontendUI, []string{"ui", "layout", "style", "css", "component", "render", "screen", "page"}},
	{TaskFrontendLogic, []string{"form validation", "client-side", "frontend state", "browser"}},
	{TaskBackendAPI, []string{"endpoint", "api", "route", "rest", "grpc", "webhook", "handler"}},
	{TaskDevOps, []string{"deploy", "docker", "ci", "pipeline", "kubernetes", "terraform", "infra"}},
	{TaskConfig, []string{"config", "settings", "environment variable", "flag", "yaml", "toml"}},
	{TaskDocumentation, []string{"document", "readme", "docs", "comment", "changelog"}},
	{TaskRefactoring, []string{"refactor", "cleanup", "restructure", "rename", "extract", "simplify"}},
	{TaskMathematical, []string{"algorithm", "calculation", "formula", "statistics", "optimize complexity"}},
	{TaskComplexIntegration, []string{"integrate", "integration", "third-party", "oauth", "sdk", "migrate from"}},
	{TaskBackendLogic, []string{"service", "business logic", "worker", "processing", "backend"}},
}

// ClassifyTask derives a task type from a story's title and description
// using keyword scoring. Unmatched stories classify as unknown.
func ClassifyTask(title, description string) TaskType {
	text := strings.ToLower(title + " " + description)

	best := TaskUnknown
	bestScore := 0
	for _, entry := range taskKeywords {
		score := 0
		for _, word := range entry.words {
			if strings.Contains(text, word) {
				score++
			}
		}
		if score > bestScore {
			best = entry.taskType
			bestScore = score
		}
	}
	return best
}
