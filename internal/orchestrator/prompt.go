package orchestrator

import (
	"fmt"
	"strings"

	"github.com/harrison/autodev/internal/prd"
)

// BuildPrompt renders the task prompt handed to the coding CLI: the story,
// its acceptance criteria with their test commands, and on retries the
// failure detail from the previous attempt so the tool can self-correct.
func BuildPrompt(story *prd.UserStory, attempt int, failureDetail string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Implement the following user story.\n\n")
	fmt.Fprintf(&sb, "## Story: %s\n\n", story.Title)
	if story.Description != "" {
		sb.WriteString(story.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Acceptance Criteria\n\n")
	sb.WriteString("Each criterion is verified by running its command from the project root; the command must exit 0.\n")
	for _, criterion := range story.AcceptanceCriteria.Criteria {
		fmt.Fprintf(&sb, "\n- [%s] %s\n", criterion.ID, criterion.Text)
		if criterion.TestCommand != "" {
			fmt.Fprintf(&sb, "  Verified by: %s\n", criterion.TestCommand)
		}
	}
	for _, text := range story.AcceptanceCriteria.Legacy {
		fmt.Fprintf(&sb, "\n- %s\n", text)
	}

	if attempt > 1 && failureDetail != "" {
		fmt.Fprintf(&sb, "\n## Previous Attempt (%d) Failed\n\n", attempt-1)
		sb.WriteString(failureDetail)
		sb.WriteString("\nFix the failures above. Do not undo work that already passes.\n")
	}

	sb.WriteString("\nMake the necessary code changes and run the verification commands yourself before finishing.\n")
	return sb.String()
}

// argsForCLI shapes the invocation for each supported CLI. Tools with a
// structured streaming mode get it requested; the rest emit plain text and
// degrade to line-level text events.
func argsForCLI(cli, prompt, model string) []string {
	switch cli {
	case "claude":
		return []string{
			"-p", prompt,
			"--output-format", "stream-json",
			"--verbose",
			"--model", model,
			"--dangerously-skip-permissions",
		}
	case "aider":
		return []string{"--message", prompt, "--model", model, "--yes"}
	case "codex":
		return []string{"exec", "--model", model, prompt}
	case "cursor-agent":
		return []string{"-p", prompt, "--model", model, "--output-format", "stream-json"}
	case "copilot":
		return []string{"-p", prompt, "--allow-all-tools"}
	case "gemini", "qwen":
		return []string{"-p", prompt, "--model", model, "--yolo"}
	}
	return []string{"-p", prompt}
}
