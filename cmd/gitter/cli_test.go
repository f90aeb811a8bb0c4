package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func chdirForTest(t *testing.T, dir string) func() {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
	return func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore cwd %s: %v", wd, err)
		}
	}
}

func writeTestFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func runCmd(t *testing.T, build func() *cobra.Command, args ...string) string {
	t.Helper()

	cmd := build()
	cmd.SetArgs(args)

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("%s %v failed: %v\noutput:\n%s", cmd.Name(), args, err, output.String())
	}
	return output.String()
}

func runCmdErr(t *testing.T, build func() *cobra.Command, args ...string) error {
	t.Helper()

	cmd := build()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	restore := chdirForTest(t, dir)
	defer restore()
	runCmd(t, newInitCmd)
	return dir
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	restore := chdirForTest(t, dir)
	defer restore()

	out := runCmd(t, newInitCmd)
	if !strings.Contains(out, "initialized empty gitter repository") {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitter", "HEAD")); err != nil {
		t.Errorf("HEAD not created: %v", err)
	}

	// A second init in the same directory must fail.
	if err := runCmdErr(t, newInitCmd); err == nil {
		t.Errorf("double init succeeded")
	}
}

func TestAddCommitLogFlow(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeTestFile(t, dir, "hello.txt", "hello\n")
	runCmd(t, newAddCmd, "hello.txt")

	out := runCmd(t, newCommitCmd, "-m", "first commit", "--author", "Tester <t@example.com>")
	if !strings.Contains(out, "first commit") {
		t.Errorf("commit output = %q", out)
	}

	out = runCmd(t, newLogCmd, "--oneline")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("oneline log has %d lines: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "first commit") {
		t.Errorf("log line = %q", lines[0])
	}
	if !strings.Contains(lines[0], "HEAD -> main") {
		t.Errorf("log line missing decoration: %q", lines[0])
	}

	writeTestFile(t, dir, "hello.txt", "hello again\n")
	runCmd(t, newAddCmd, "hello.txt")
	runCmd(t, newCommitCmd, "-m", "second commit", "--author", "Tester <t@example.com>")

	out = runCmd(t, newLogCmd, "--oneline")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("log has %d lines after two commits: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "second commit") || !strings.Contains(lines[1], "first commit") {
		t.Errorf("log order wrong: %q", lines)
	}

	out = runCmd(t, newLogCmd, "--oneline", "-n", "1")
	if got := strings.Count(out, "\n"); got != 1 {
		t.Errorf("limited log emitted %d lines", got)
	}
}

func TestLogCmd_NoCommits(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	out := runCmd(t, newLogCmd)
	if !strings.Contains(out, "no commits yet") {
		t.Errorf("fresh repo log = %q", out)
	}
}

func TestStatusCmd(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	out := runCmd(t, newStatusCmd)
	if !strings.Contains(out, "no commits yet") {
		t.Errorf("fresh status = %q", out)
	}
	if !strings.Contains(out, "nothing to commit, working tree clean") {
		t.Errorf("fresh status missing clean line: %q", out)
	}

	writeTestFile(t, dir, "new.txt", "new\n")
	out = runCmd(t, newStatusCmd)
	if !strings.Contains(out, "untracked files:") || !strings.Contains(out, "new.txt") {
		t.Errorf("untracked status = %q", out)
	}

	runCmd(t, newAddCmd, "new.txt")
	out = runCmd(t, newStatusCmd)
	if !strings.Contains(out, "changes to be committed:") {
		t.Errorf("staged status = %q", out)
	}

	runCmd(t, newCommitCmd, "-m", "add new.txt", "--author", "Tester <t@example.com>")
	out = runCmd(t, newStatusCmd)
	if !strings.Contains(out, "nothing to commit, working tree clean") {
		t.Errorf("clean status = %q", out)
	}

	writeTestFile(t, dir, "new.txt", "edited\n")
	out = runCmd(t, newStatusCmd)
	if !strings.Contains(out, "changes not staged for commit:") {
		t.Errorf("dirty status = %q", out)
	}
}

func TestRmCmd(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeTestFile(t, dir, "f.txt", "data\n")
	runCmd(t, newAddCmd, "f.txt")
	runCmd(t, newRmCmd, "f.txt")

	out := runCmd(t, newStatusCmd)
	if !strings.Contains(out, "untracked files:") {
		t.Errorf("status after rm = %q", out)
	}

	// The working-tree file stays on disk.
	if _, err := os.Stat(filepath.Join(dir, "f.txt")); err != nil {
		t.Errorf("rm deleted the working file: %v", err)
	}

	if err := runCmdErr(t, newRmCmd, "f.txt"); err == nil {
		t.Errorf("rm of unstaged file succeeded")
	}
}

func TestCommitCmd_EmptyFails(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	if err := runCmdErr(t, newCommitCmd, "-m", "nothing"); err == nil {
		t.Errorf("empty commit succeeded")
	}
}

func TestDiffCmd(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeTestFile(t, dir, "f.txt", "line one\nline two\n")
	runCmd(t, newAddCmd, "f.txt")
	runCmd(t, newCommitCmd, "-m", "base", "--author", "Tester <t@example.com>")

	// Clean tree: no output.
	if out := runCmd(t, newDiffCmd); strings.TrimSpace(out) != "" {
		t.Errorf("clean diff = %q", out)
	}

	writeTestFile(t, dir, "f.txt", "line one\nline 2\n")
	out := runCmd(t, newDiffCmd)
	if !strings.Contains(out, "diff --gitter a/f.txt b/f.txt") {
		t.Errorf("diff header missing: %q", out)
	}
	if !strings.Contains(out, "line two") || !strings.Contains(out, "line 2") {
		t.Errorf("diff body missing changed lines: %q", out)
	}
	if !strings.Contains(out, "@@") {
		t.Errorf("diff missing hunk header: %q", out)
	}

	// Worktree edits are invisible to --cached until staged.
	if out := runCmd(t, newDiffCmd, "--cached"); strings.TrimSpace(out) != "" {
		t.Errorf("cached diff before staging = %q", out)
	}
	runCmd(t, newAddCmd, "f.txt")
	out = runCmd(t, newDiffCmd, "--cached")
	if !strings.Contains(out, "line 2") {
		t.Errorf("cached diff after staging = %q", out)
	}
}

func TestDiffCmd_Binary(t *testing.T) {
	dir := initTestRepo(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeTestFile(t, dir, "blob.bin", "a\x00b")
	runCmd(t, newAddCmd, "blob.bin")
	runCmd(t, newCommitCmd, "-m", "binary", "--author", "Tester <t@example.com>")

	writeTestFile(t, dir, "blob.bin", "c\x00d")
	out := runCmd(t, newDiffCmd)
	if !strings.Contains(out, "binary files differ") {
		t.Errorf("binary diff = %q", out)
	}
}
