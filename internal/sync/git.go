package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitDestination commits each snapshot to a file in a local clone and
// pushes it, so the repository history doubles as a log of backups.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // backup path within the repo
	branch string
}

// NewGitDestination returns a destination writing file on branch of the
// clone at repo.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

// Name returns the backup file and branch.
func (d *GitDestination) Name() string {
	return "git:" + filepath.Join(d.repo, d.file) + "@" + d.branch
}

// Write commits snap unless the file already holds the same bytes. An empty
// snapshot never replaces a committed backup that has events.
func (d *GitDestination) Write(ctx context.Context, snap Snapshot) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if snap.Events == 0 {
		if have := committedEvents(path); have > 0 {
			return fmt.Errorf("%w: %s has %d events", ErrEmptySnapshot, d.file, have)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, snap.Data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	if _, err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	// The export header carries a timestamp, so compare only the events.
	if same, err := d.sameEventsAsHead(ctx); err == nil && same {
		_, err := d.git(ctx, "checkout", "HEAD", "--", d.file)
		return err
	}
	if _, err := d.git(ctx, "commit", "-m", commitMessage(snap)); err != nil {
		return err
	}
	_, err := d.git(ctx, "push", "origin", d.branch)
	return err
}

// sameEventsAsHead reports whether the staged backup differs from HEAD only
// in its header line.
func (d *GitDestination) sameEventsAsHead(ctx context.Context) (bool, error) {
	staged, err := d.git(ctx, "show", ":"+filepath.ToSlash(d.file))
	if err != nil {
		return false, err
	}
	head, err := d.git(ctx, "show", "HEAD:"+filepath.ToSlash(d.file))
	if err != nil {
		return false, err
	}
	return bytes.Equal(afterHeader(staged), afterHeader(head)), nil
}

func afterHeader(b []byte) []byte {
	_, rest, _ := bytes.Cut(b, []byte("\n"))
	return rest
}

// committedEvents is the event count of the backup at path, or 0 when
// there is none.
func committedEvents(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	n, err := backupEventCount(f)
	if err != nil {
		return 0
	}
	return n
}

func commitMessage(snap Snapshot) string {
	noun := "events"
	if snap.Events == 1 {
		noun = "event"
	}
	return fmt.Sprintf("backup: %d campus %s as of %s", snap.Events, noun, snap.TakenAt.UTC().Format(time.RFC3339))
}

// git runs a git subcommand in the clone. Failures carry git's own output.
func (d *GitDestination) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exit *exec.ExitError
		if errors.As(err, &exit) && msg != "" {
			return nil, fmt.Errorf("git %s: %s", args[0], msg)
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.Bytes(), nil
}
