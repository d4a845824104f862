package worktree

import (
	"strings"
	"testing"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

func TestBranchName(t *testing.T) {
	tests := []struct {
		name     string
		task     *models.Task
		override string
		want     string
	}{
		{
			name:     "override wins",
			task:     &models.Task{Seq: 12, Title: "Some task"},
			override: "hotfix/urgent",
			want:     "hotfix/urgent",
		},
		{
			name: "task with punctuation heavy title",
			task: &models.Task{Seq: 6080, Title: "Fix bug #123: Handle @user's input!"},
			want: "task-6080-fix-bug-123-handle-users-input",
		},
		{
			name: "simple title",
			task: &models.Task{Seq: 1, Title: "Add login page"},
			want: "task-1-add-login-page",
		},
		{
			name: "title with no usable characters",
			task: &models.Task{Seq: 7, Title: "!!! ???"},
			want: "task-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BranchName(tt.task, tt.override, "gobby")
			if got != tt.want {
				t.Errorf("BranchName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBranchName_NoTaskFallsBackToPrefix(t *testing.T) {
	got := BranchName(nil, "", "wip")
	if !strings.HasPrefix(got, "wip/") {
		t.Errorf("BranchName() = %q, want wip/<timestamp>", got)
	}

	got = BranchName(nil, "", "")
	if !strings.HasPrefix(got, "gobby/") {
		t.Errorf("BranchName() = %q, want gobby/<timestamp>", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fix bug #123: Handle @user's input!", "fix-bug-123-handle-users-input"},
		{"Add login page", "add-login-page"},
		{"  spaced   out  ", "spaced-out"},
		{"UPPER lower", "upper-lower"},
		{"", ""},
		{"***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := slugify(tt.title); got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := slugify(strings.Repeat("abcde ", 20))
	if len(got) > maxSlugLen {
		t.Errorf("slugify() length = %d, want <= %d", len(got), maxSlugLen)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slugify() = %q, want no trailing hyphen", got)
	}
}
