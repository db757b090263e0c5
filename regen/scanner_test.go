package regen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestPluginScannerCompleteTool(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "calendar.go", `package plugins

type CalendarTool struct{}

func (c *CalendarTool) Execute(args map[string]any) (map[string]any, error) {
	return nil, nil
}
`)

	s := NewPluginScanner(dir)
	issues := s.Detect(context.Background(), nil)
	assert.Empty(t, issues)
}

func TestPluginScannerMissingExecute(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "broken.go", `package plugins

type WeatherTool struct{}

func (w *WeatherTool) Describe() string { return "weather" }
`)

	s := NewPluginScanner(dir)
	issues := s.Detect(context.Background(), nil)

	require.Len(t, issues, 1)
	assert.Equal(t, IssueMissingMethod, issues[0].Kind)
	assert.Equal(t, "WeatherTool", issues[0].Subject)
	assert.Contains(t, issues[0].Detail, "broken.go")
}

func TestPluginScannerValueReceiver(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "notes.go", `package plugins

type NotesTool struct{}

func (n NotesTool) Execute(args map[string]any) (map[string]any, error) {
	return nil, nil
}
`)

	s := NewPluginScanner(dir)
	assert.Empty(t, s.Detect(context.Background(), nil))
}

func TestPluginScannerIgnoresNonToolTypes(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "helpers.go", `package plugins

type helperState struct{}

func (h *helperState) reset() {}
`)

	s := NewPluginScanner(dir)
	assert.Empty(t, s.Detect(context.Background(), nil))
}

func TestPluginScannerSkipsTestFiles(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "weather_test.go", `package plugins

type FakeTool struct{}
`)

	s := NewPluginScanner(dir)
	assert.Empty(t, s.Detect(context.Background(), nil))
}

func TestPluginScannerMissingDir(t *testing.T) {
	s := NewPluginScanner(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, s.Detect(context.Background(), nil))
}

func TestPluginScannerEmptyDirConfig(t *testing.T) {
	s := NewPluginScanner("")
	assert.Empty(t, s.Detect(context.Background(), nil))
}

func TestPluginScannerMultipleToolsInOneFile(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "bundle.go", `package plugins

type AlphaTool struct{}

func (a *AlphaTool) Execute(args map[string]any) (map[string]any, error) { return nil, nil }

type BetaTool struct{}

func (b *BetaTool) Setup() {}
`)

	s := NewPluginScanner(dir)
	issues := s.Detect(context.Background(), nil)

	require.Len(t, issues, 1)
	assert.Equal(t, "BetaTool", issues[0].Subject)
}
