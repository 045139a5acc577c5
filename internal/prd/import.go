package prd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImportMarkdown converts a markdown story list into a PRD document.
//
// Expected shape:
//
//	# Project Name
//
//	## Story: Add login endpoint [medium]
//	Free-form description paragraphs.
//
//	- Returns 200 for valid credentials
//	  ```test
//	  curl -fsS localhost:8080/login
//	  ```
//	- Rejects a bad password
//
// Each level-2 "Story:" heading starts a story. List items become
// acceptance criteria; an item with a fenced "test" block gets that block's
// content as its test command, items without one become untestable criteria.
// An optional [simple|medium|complex] suffix on the heading sets complexity.
func ImportMarkdown(source []byte) (*Document, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	out := &Document{}
	var current *UserStory
	var description strings.Builder
	storyCount := 0

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(description.String())
		out.UserStories = append(out.UserStories, current)
		current = nil
		description.Reset()
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && out.Project == "" {
				out.Project = strings.TrimSpace(nodeText(node, source))
				return ast.WalkSkipChildren, nil
			}
			if node.Level == 2 {
				flush()
				title := strings.TrimSpace(nodeText(node, source))
				if rest, ok := strings.CutPrefix(title, "Story:"); ok {
					storyCount++
					title, complexity := splitComplexity(strings.TrimSpace(rest))
					current = &UserStory{
						ID:         fmt.Sprintf("us-%d", storyCount),
						Title:      title,
						Complexity: complexity,
					}
				}
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			if current == nil {
				return ast.WalkSkipChildren, nil
			}
			criterion := AcceptanceCriterion{
				ID:   fmt.Sprintf("%s-ac%d", current.ID, current.AcceptanceCriteria.Len()+1),
				Text: strings.TrimSpace(listItemText(node, source)),
			}
			if cmd := listItemTestCommand(node, source); cmd != "" {
				criterion.TestCommand = cmd
			}
			current.AcceptanceCriteria.Criteria = append(current.AcceptanceCriteria.Criteria, criterion)
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			if current != nil {
				if description.Len() > 0 {
					description.WriteString("\n\n")
				}
				description.WriteString(nodeText(node, source))
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown: %w", err)
	}
	flush()

	if out.Project == "" {
		return nil, fmt.Errorf("%w: markdown has no level-1 project heading", ErrMalformedPRD)
	}
	if len(out.UserStories) == 0 {
		return nil, fmt.Errorf("%w: markdown has no \"## Story:\" headings", ErrMalformedPRD)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// splitComplexity strips a trailing [simple|medium|complex] marker.
func splitComplexity(title string) (string, Complexity) {
	for _, c := range []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex} {
		suffix := "[" + string(c) + "]"
		if strings.HasSuffix(title, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(title, suffix)), c
		}
	}
	return title, ComplexityMedium
}

// nodeText collects the plain text beneath an AST node.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	collectText(n, source, &buf)
	return buf.String()
}

func collectText(n ast.Node, source []byte, buf *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.CodeSpan:
			collectText(c, source, buf)
		default:
			collectText(c, source, buf)
		}
	}
}

// listItemText extracts the item's own text, ignoring nested code blocks.
func listItemText(item ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.List:
			continue
		default:
			collectText(c, source, &buf)
		}
	}
	return buf.String()
}

// listItemTestCommand returns the content of a nested fenced "test" block,
// or "" if the item has none.
func listItemTestCommand(item ast.Node, source []byte) string {
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		fcb, ok := c.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		lang := string(fcb.Language(source))
		if lang != "" && lang != "test" && lang != "sh" && lang != "bash" {
			continue
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		return strings.TrimSpace(buf.String())
	}
	return ""
}
