package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/agent-delegation-go/subagent"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const reviewerMD = `---
name: Code Reviewer
description: Reviews pull requests
role: code-reviewer
skills: [go, security review]
tools: Read, Grep, mcp__github__*
max_concurrent: 2
model: claude-haiku-4-5
success_rate: 90
avg_response_time: 1500ms
max_budget: 2.50
---
You review code carefully.
`

func TestParse_Markdown(t *testing.T) {
	entries, err := Parse("agents/reviewer.md", []byte(reviewerMD))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	def := entries[0].Definition()
	assert.Equal(t, "code-reviewer", def.ID)
	assert.Equal(t, "Code Reviewer", def.Name)
	assert.Equal(t, subagent.RoleCodeReviewer, def.Role)
	assert.Equal(t, []string{"go", "security review"}, def.Skills)
	assert.Equal(t, []string{"Read", "Grep", "mcp__github__*"}, def.Tools)
	assert.Equal(t, 2, def.MaxConcurrent)
	assert.Equal(t, "claude-haiku-4-5", def.Model)
	require.NotNil(t, def.HistoricalSuccessRate)
	assert.Equal(t, 90.0, *def.HistoricalSuccessRate)
	require.NotNil(t, def.HistoricalResponseTime)
	assert.Equal(t, 1500*time.Millisecond, *def.HistoricalResponseTime)
	assert.True(t, decimal.RequireFromString("2.5").Equal(def.MaxBudget))
	assert.Equal(t, "You review code carefully.", def.Instructions)
	assert.Equal(t, "agents/reviewer.md", entries[0].Path)
}

func TestParse_MarkdownWithoutFrontMatter(t *testing.T) {
	entries, err := Parse("README.md", []byte("# Agents\n\nNothing here.\n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParse_MarkdownUnterminated(t *testing.T) {
	_, err := Parse("bad.md", []byte("---\nname: x\nno end"))
	assert.ErrorContains(t, err, "unterminated front matter")
}

func TestParse_MarkdownEmptyFrontMatter(t *testing.T) {
	entries, err := Parse("agents/helper.md", []byte("---\n---\nHelp out.\n"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	def := entries[0].Definition()
	assert.Equal(t, "helper", def.ID)
	assert.Equal(t, subagent.RoleCustom, def.Role)
	assert.Equal(t, "Help out.", def.Instructions)
}

func TestParse_YAMLShapes(t *testing.T) {
	single := "id: qa-1\nrole: QA\ntools: [Read, Bash]\n"
	list := "- id: a\n  role: DevOps\n- id: b\n  role: Security\n"
	wrapped := "workers:\n  - id: c\n    avg_response_time: 250\n"

	entries, err := Parse("one.yaml", []byte(single))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, subagent.RoleQA, entries[0].Definition().Role)

	entries, err = Parse("list.yml", []byte(list))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[1].WorkerID())

	entries, err = Parse("wrapped.yaml", []byte(wrapped))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 250*time.Millisecond, *entries[0].Definition().HistoricalResponseTime)
}

func TestParse_JSON(t *testing.T) {
	doc := `[{"id": "fe", "role": "FrontendDev", "skills": ["react"], "max_budget": "10"}]`
	entries, err := Parse("workers.json", []byte(doc))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	def := entries[0].Definition()
	assert.Equal(t, subagent.RoleFrontendDev, def.Role)
	assert.True(t, decimal.NewFromInt(10).Equal(def.MaxBudget))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("x.yaml", []byte("id: a\nmax_budget: -1\n"))
	assert.ErrorContains(t, err, "must not be negative")

	_, err = Parse("x.yaml", []byte("id: a\navg_response_time: soon\n"))
	assert.ErrorContains(t, err, "invalid duration")

	_, err = Parse("x.yaml", []byte("just a string"))
	assert.Error(t, err)
}

func TestWorkerID(t *testing.T) {
	assert.Equal(t, "explicit", (&Entry{ID: " explicit ", Name: "Other"}).WorkerID())
	assert.Equal(t, "api-designer-v2", (&Entry{Name: "API Designer (v2)"}).WorkerID())
	assert.Equal(t, "stem", (&Entry{Path: "/x/stem.md"}).WorkerID())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), reviewerMD)
	writeFile(t, filepath.Join(dir, "nested", "team.yaml"), "- id: qa\n- id: ops\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	entries, err := Load(dir, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.WorkerID())
	}
	assert.Equal(t, []string{"code-reviewer", "qa", "ops"}, ids)
}

func TestLoad_Duplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "id: same\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "id: same\n")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestSchema(t *testing.T) {
	raw, err := Schema()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Worker catalog entry", m["title"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"id", "role", "tools", "max_budget", "avg_response_time"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Path")
}

type fakeTarget struct {
	mu      sync.Mutex
	workers map[string]subagent.Definition
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{workers: make(map[string]subagent.Definition)}
}

func (f *fakeTarget) RegisterWorker(_ context.Context, def subagent.Definition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers[def.ID] = def
	return nil
}

func (f *fakeTarget) UnregisterWorker(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.workers[id]
	delete(f.workers, id)
	return ok, nil
}

func (f *fakeTarget) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.workers))
	for id := range f.workers {
		out = append(out, id)
	}
	return out
}

func TestWatcher_Sync(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "team.yaml"), "- id: a\n- id: b\n")
	writeFile(t, filepath.Join(dir, "dup.yaml"), "id: a\n")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "id: [\n")

	target := newFakeTarget()
	w := NewWatcher(target, []string{dir})
	err := w.Sync(context.Background())
	assert.ErrorContains(t, err, "broken.yaml")
	assert.ElementsMatch(t, []string{"a", "b"}, target.ids())

	files := w.Files()
	// dup.yaml sorts first, so it owns a
	assert.Equal(t, []string{"a"}, files[filepath.Join(dir, "dup.yaml")])
	assert.Equal(t, []string{"b"}, files[filepath.Join(dir, "team.yaml")])
}

func TestWatcher_ReloadRemovesDroppedWorkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "team.yaml")
	writeFile(t, path, "- id: a\n- id: b\n")

	target := newFakeTarget()
	w := NewWatcher(target, []string{dir})
	require.NoError(t, w.Sync(context.Background()))

	writeFile(t, path, "- id: b\n- id: c\n")
	require.NoError(t, w.reload(context.Background(), path))
	assert.ElementsMatch(t, []string{"b", "c"}, target.ids())

	require.NoError(t, os.Remove(path))
	require.NoError(t, w.reload(context.Background(), path))
	assert.Empty(t, target.ids())
	assert.Empty(t, w.Files())
}

func TestWatcher_Events(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "id: a\n")

	target := newFakeTarget()
	w := NewWatcher(target, []string{dir})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.ElementsMatch(t, []string{"a"}, target.ids())

	writeFile(t, filepath.Join(dir, "b.md"), "---\nid: b\nrole: QA\n---\nTest things.\n")
	assert.Eventually(t, func() bool {
		return len(target.ids()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.yaml")))
	assert.Eventually(t, func() bool {
		ids := target.ids()
		return len(ids) == 1 && ids[0] == "b"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	w := NewWatcher(newFakeTarget(), []string{t.TempDir()})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
