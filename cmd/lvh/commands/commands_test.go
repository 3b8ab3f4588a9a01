package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recorded = `{"event":"data","data":{"user":{"profile":{"title":"John"}}}}
{"event":"ui","content":"<p>Hello</p>\n"}
{"event":"ui","content":"<component-slot type=\"Card\" data-source=\"user::profile\"></component-slot>"}
{"event":"error","message":"slow upstream"}
{"event":"done"}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeFile(t, dir, "s.jsonl", recorded)
	var stdout, stderr bytes.Buffer

	err := Render([]string{"-config", filepath.Join(dir, "none.yaml"), "-stages", "-stats", sessionPath}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t,
		"<p>Hello</p>\n<div class=\"hybrid-slot\" data-slot-id=\"Card::user::profile\"><div class=\"widget-card card-default\"><h3>John</h3></div></div>\n",
		stdout.String())
	assert.Contains(t, stderr.String(), "upstream error: slow upstream")
	assert.Contains(t, stderr.String(), `"stage":"complete"`)
	assert.Contains(t, stderr.String(), `"mount:Card": 1`)
	assert.Contains(t, stderr.String(), `"widgets_mounted": 1`)
}

func TestRenderWithConfig(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeFile(t, dir, "s.jsonl",
		`{"event":"ui","content":"<card type=\"Vinyl\" data-source=\"x::y\"/>"}`+"\n")
	configPath := writeFile(t, dir, "livehydrate.yaml", "slot_tag: card\nminify: true\n")
	var stdout, stderr bytes.Buffer

	require.NoError(t, Render([]string{"-config", configPath, sessionPath}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `<h3>Unknown</h3>`)
}

func TestRenderErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := Render(nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session file required")

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "binding_tag: component-slot\n")
	err = Render([]string{"-config", bad, writeFile(t, dir, "s.jsonl", recorded)}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ from SlotTag")
}

func TestTrace(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "trace.db")
	sessionPath := writeFile(t, dir, "s.jsonl", recorded)
	configPath := writeFile(t, dir, "livehydrate.yaml", "trace_db: "+db+"\n")

	var stdout, stderr bytes.Buffer
	require.NoError(t, Render([]string{"-config", configPath, "-session-id", "replay-1", sessionPath}, &stdout, &stderr))

	stdout.Reset()
	require.NoError(t, Trace([]string{"-db", db}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "SESSION")
	assert.Contains(t, stdout.String(), "replay-1")

	stdout.Reset()
	require.NoError(t, Trace([]string{"-db", db, "-session", "replay-1"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Processing HTML")
	assert.Contains(t, stdout.String(), "Mounting Card")

	assert.Error(t, Trace(nil, &stdout, &stderr), "-db is required")
	assert.Error(t, Trace([]string{"-db", db, "-session", "nope"}, &stdout, &stderr))
}
