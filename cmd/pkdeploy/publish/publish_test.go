// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/publish"
	"github.com/pythonkr/pkdeploy/lib/testutil"
)

type site struct {
	root     string
	config   string
	mirror   string
	upstream string
}

// newSite creates a local-profile site whose publish destination is a
// clone of a bare upstream already holding translations maintained
// elsewhere.
func newSite(t *testing.T, export string) *site {
	t.Helper()
	testutil.RequireBinary(t, "git")
	testutil.RequireBinary(t, "sh")

	root := t.TempDir()
	s := &site{
		root:     root,
		mirror:   filepath.Join(root, "mirror"),
		upstream: filepath.Join(root, "upstream.git"),
	}
	runGit(t, "", "init", "--bare", "--initial-branch=main", s.upstream)
	runGit(t, "", "clone", s.upstream, s.mirror)
	testutil.WriteTree(t, s.mirror, map[string]string{
		"index.html":           "<h1>old</h1>",
		"translations/ko.json": `{"hello": "안녕하세요"}`,
	})
	runGit(t, s.mirror, "add", "--all")
	runGit(t, s.mirror, "commit", "-m", "initial")
	runGit(t, s.mirror, "push", "origin", "HEAD:refs/heads/main")

	lines := []string{
		"profiles:",
		"  local:",
		"    paths:",
		"      source: " + root,
		"      build_dir: " + filepath.Join(root, "build"),
		"      state: " + filepath.Join(root, "state"),
		"    service:",
		"      access_log: " + filepath.Join(root, "logs", "access.log"),
		"      error_log: " + filepath.Join(root, "logs", "error.log"),
		"    commands:",
		"      export: '" + export + "'",
		"    publish:",
		"      destination: " + s.mirror,
		"      remote: origin",
		"      branch: main",
		"",
	}
	s.config = filepath.Join(root, "pkdeploy.yaml")
	if err := os.WriteFile(s.config, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	return s
}

func (s *site) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := &cli.Command{
		Name:        "pkdeploy",
		Subcommands: []*cli.Command{command(&stdout)},
		Logger:      slog.New(slog.DiscardHandler),
		Output:      io.Discard,
	}
	full := append([]string{"publish", "--profile", "local", "--config", s.config}, args...)
	err := root.Execute(context.Background(), full)
	return stdout.String(), err
}

func (s *site) records(t *testing.T) []history.Record {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(s.root, "state", "history.db"), nil)
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer store.Close()
	records, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	return records
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	command := exec.Command("git", args...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.local",
	)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

const renderSite = `mkdir -p "$BUILD_DIR/2026" && echo "<h1>$RELEASE_REVISION</h1>" > "$BUILD_DIR/index.html" && echo year > "$BUILD_DIR/2026/index.html"`

func TestPublish_ExportsCommitsAndPushes(t *testing.T) {
	site := newSite(t, renderSite)

	output, err := site.execute(t, "--revision", "abc123", "--json")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	var published publishOutput
	if err := json.Unmarshal([]byte(output), &published); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if !published.Result.Committed || !published.Result.Pushed || published.Files != 2 {
		t.Errorf("result = %+v, want a pushed commit of 2 files", published)
	}

	upstreamHead := runGit(t, site.upstream, "rev-parse", "main")
	if upstreamHead != published.Result.CommitID {
		t.Errorf("upstream main = %s, want %s", upstreamHead, published.Result.CommitID)
	}
	if message := runGit(t, site.upstream, "log", "-1", "--format=%s", "main"); message != "Publish abc123" {
		t.Errorf("commit message = %q", message)
	}

	files := testutil.ReadTree(t, site.mirror, ".git")
	if strings.TrimSpace(files["index.html"]) != "<h1>abc123</h1>" {
		t.Errorf("index.html = %q", files["index.html"])
	}
	if files["translations/ko.json"] == "" {
		t.Error("excluded translations were removed")
	}

	records := site.records(t)
	if len(records) != 1 || records[0].Kind != history.KindPublish || records[0].Status != history.StatusSucceeded {
		t.Fatalf("history = %+v, want one succeeded publish", records)
	}
	if len(records[0].Steps) != 2 || records[0].Steps[0].Name != "export" {
		t.Errorf("steps = %+v, want export then publish", records[0].Steps)
	}
}

func TestPublish_Unchanged(t *testing.T) {
	site := newSite(t, renderSite)

	if _, err := site.execute(t, "--revision", "abc123"); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	before := runGit(t, site.upstream, "rev-list", "--count", "main")

	output, err := site.execute(t, "--revision", "abc123")
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if after := runGit(t, site.upstream, "rev-list", "--count", "main"); after != before {
		t.Errorf("upstream commits went from %s to %s on an unchanged publish", before, after)
	}
	if !strings.Contains(output, "up to date") {
		t.Errorf("summary:\n%s", output)
	}
}

func TestPublish_SkipExport(t *testing.T) {
	site := newSite(t, "exit 1")
	testutil.WriteTree(t, filepath.Join(site.root, "build"), map[string]string{
		"index.html": "<h1>prebuilt</h1>",
	})

	output, err := site.execute(t, "--revision", "abc123", "--skip-export")
	if err != nil {
		t.Fatalf("publish --skip-export: %v", err)
	}
	if !strings.Contains(output, "pushed") {
		t.Errorf("summary:\n%s", output)
	}
	records := site.records(t)
	if len(records) != 1 || records[0].Steps[0].Name != "scan" {
		t.Errorf("history = %+v, want a scan step", records)
	}
}

func TestPublish_ExportFailure(t *testing.T) {
	site := newSite(t, "exit 7")
	before := testutil.ReadTree(t, site.mirror, ".git")

	if _, err := site.execute(t, "--revision", "abc123"); err == nil {
		t.Fatal("publish succeeded with a failing export")
	}
	if after := testutil.ReadTree(t, site.mirror, ".git"); len(after) != len(before) || after["index.html"] != before["index.html"] {
		t.Errorf("destination changed after a failed export: %v", after)
	}
	records := site.records(t)
	if len(records) != 1 || records[0].Status != history.StatusFailed || records[0].FailedStep != "export" {
		t.Errorf("history = %+v, want one publish failed at export", records)
	}
}

func TestPublish_TransmitFailure(t *testing.T) {
	site := newSite(t, renderSite)
	runGit(t, site.mirror, "remote", "set-url", "origin", filepath.Join(site.root, "missing.git"))

	output, err := site.execute(t, "--revision", "abc123")
	if !errors.Is(err, publish.ErrPublishTransmit) {
		t.Fatalf("publish = %v, want ErrPublishTransmit", err)
	}
	if !strings.Contains(output, "failed") {
		t.Errorf("summary:\n%s", output)
	}
	if message := runGit(t, site.mirror, "log", "-1", "--format=%s"); message != "Publish abc123" {
		t.Errorf("local commit was not kept: last commit %q", message)
	}
}
