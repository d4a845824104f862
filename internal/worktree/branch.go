package worktree

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// maxSlugLen caps the title-derived portion of a branch name.
const maxSlugLen = 40

// BranchName derives the branch for a task workspace. An explicit
// override wins; otherwise the task's sequence number and title produce
// a deterministic name; without any task context the prefix and current
// unix time are used.
func BranchName(task *models.Task, override, prefix string) string {
	if override != "" {
		return override
	}
	if task != nil {
		if slug := slugify(task.Title); slug != "" {
			return fmt.Sprintf("task-%d-%s", task.Seq, slug)
		}
		return fmt.Sprintf("task-%d", task.Seq)
	}
	if prefix == "" {
		prefix = "gobby"
	}
	return fmt.Sprintf("%s/%d", prefix, time.Now().Unix())
}

// slugify lowercases the title, strips non-alphanumeric runes, joins the
// remaining words with hyphens, and truncates to maxSlugLen.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}
