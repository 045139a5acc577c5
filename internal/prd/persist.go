package prd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/autodev/internal/filelock"
)

// ErrMalformedPRD indicates the PRD file could not be parsed or violates a
// structural invariant. A malformed PRD aborts the run before any mutation,
// so the on-disk file is never corrupted.
var ErrMalformedPRD = errors.New("malformed PRD")

// Load reads and validates a PRD file. Validation happens before the
// document is returned, so callers never see a document that would fail
// Validate.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PRD %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPRD, path, err)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPRD, path, err)
	}

	return &doc, nil
}

// Validate checks structural invariants:
//   - project name is present
//   - story IDs are present and unique
//   - complexity values are recognized (empty defaults to medium on use)
//   - a passing story has all structured criteria passing
func (d *Document) Validate() error {
	if d.Project == "" {
		return fmt.Errorf("project name is required")
	}

	seen := make(map[string]bool, len(d.UserStories))
	for i, story := range d.UserStories {
		if story == nil {
			return fmt.Errorf("userStories[%d] is null", i)
		}
		if story.ID == "" {
			return fmt.Errorf("userStories[%d] (%q) has no id", i, story.Title)
		}
		if seen[story.ID] {
			return fmt.Errorf("duplicate story id %q", story.ID)
		}
		seen[story.ID] = true

		switch story.Complexity {
		case "", ComplexitySimple, ComplexityMedium, ComplexityComplex:
		default:
			return fmt.Errorf("story %s has invalid complexity %q", story.ID, story.Complexity)
		}

		// story.passes may only be true when every structured criterion
		// passes; legacy-only stories can be marked complete externally.
		if story.Passes && len(story.AcceptanceCriteria.Criteria) > 0 {
			for j := range story.AcceptanceCriteria.Criteria {
				if !story.AcceptanceCriteria.Criteria[j].Passes {
					return fmt.Errorf("story %s is marked passing but criterion %q is not",
						story.ID, story.AcceptanceCriteria.Criteria[j].ID)
				}
			}
		}

		ids := make(map[string]bool, len(story.AcceptanceCriteria.Criteria))
		for j := range story.AcceptanceCriteria.Criteria {
			id := story.AcceptanceCriteria.Criteria[j].ID
			if id == "" {
				return fmt.Errorf("story %s criterion %d has no id", story.ID, j)
			}
			if ids[id] {
				return fmt.Errorf("story %s has duplicate criterion id %q", story.ID, id)
			}
			ids[id] = true
		}
	}

	return nil
}

// Save writes the document to path with a lock held and an atomic rename,
// so concurrent readers never see a torn PRD.
func Save(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal PRD: %w", err)
	}
	data = append(data, '\n')

	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("failed to persist PRD %s: %w", path, err)
	}
	return nil
}

// Archive copies the live PRD file to archiveDir under a timestamped name
// and returns the archive path. The live file is not modified or removed.
// Naming: <archive-dir>/<ISO-timestamp>_completed_prd.json, with colons
// replaced so the name is filesystem-safe.
func Archive(path, archiveDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PRD for archiving: %w", err)
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory %s: %w", archiveDir, err)
	}

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	archivePath := filepath.Join(archiveDir, stamp+"_completed_prd.json")

	if err := filelock.AtomicWrite(archivePath, data); err != nil {
		return "", fmt.Errorf("failed to write archive copy: %w", err)
	}

	return archivePath, nil
}
