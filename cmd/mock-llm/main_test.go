package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-strategic.json", `{"objective":"check email","phases":[]}`)
	writeFixture(t, dir, "mock-tactical.json", `{"steps":["fetch inbox"]}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 models, got %d", len(fixtures))
	}

	// Each model should have exactly 1 fixture (the base)
	for model, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("model %q: expected 1 fixture, got %d", model, len(seq))
		}
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()

	// Numbered fixtures simulating a malformed first reply then a correction
	writeFixture(t, dir, "mock-operational.1.json", `{"tool":"unknown_tool"}`)
	writeFixture(t, dir, "mock-operational.2.json", `{"tool":"web_fetch","arguments":{"url":"https://example.com"}}`)
	// Base fallback
	writeFixture(t, dir, "mock-operational.json", `{"tool":"memory_read","arguments":{"key":"fallback"}}`)

	// Non-sequential model
	writeFixture(t, dir, "mock-strategic.json", `{"objective":"test"}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	// Operational should have 3 entries: .1, .2, base
	opSeq := fixtures["mock-operational"]
	if len(opSeq) != 3 {
		t.Fatalf("mock-operational: expected 3 fixtures, got %d", len(opSeq))
	}

	// Verify order: numbered first (sorted), then base
	if !strings.Contains(opSeq[0], "unknown_tool") {
		t.Errorf("fixture[0] should be unknown_tool, got: %s", opSeq[0])
	}
	if !strings.Contains(opSeq[1], "web_fetch") {
		t.Errorf("fixture[1] should be web_fetch, got: %s", opSeq[1])
	}
	if !strings.Contains(opSeq[2], "fallback") {
		t.Errorf("fixture[2] should be fallback, got: %s", opSeq[2])
	}

	// Strategic should have 1 entry
	if len(fixtures["mock-strategic"]) != 1 {
		t.Fatalf("mock-strategic: expected 1 fixture, got %d", len(fixtures["mock-strategic"]))
	}
}

func TestLoadFixtures_NumberedOnly(t *testing.T) {
	dir := t.TempDir()

	// Only numbered, no base file
	writeFixture(t, dir, "mock-tactical.1.json", `{"steps":["a"]}`)
	writeFixture(t, dir, "mock-tactical.2.json", `{"steps":["b"]}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["mock-tactical"]
	if len(seq) != 2 {
		t.Fatalf("expected 2 fixtures, got %d", len(seq))
	}
}

func TestLoadFixtures_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	_, err := loadFixtures(dir)
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestLoadFixtures_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-strategic.json", `not json at all`)

	_, err := loadFixtures(dir)
	if err == nil {
		t.Fatal("expected error for invalid JSON fixture")
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	fixtures := map[string][]string{
		"mock-operational": {
			`{"tool":"unknown_tool"}`,
			`{"tool":"web_fetch","arguments":{}}`,
		},
		"mock-strategic": {
			`{"objective":"check email"}`,
		},
	}

	s := newMockServer(fixtures)

	// First call to mock-operational → malformed fixture
	resp1 := doCompletion(t, s, "mock-operational")
	if !strings.Contains(resp1, "unknown_tool") {
		t.Errorf("call 1: expected unknown_tool, got: %s", resp1)
	}

	// Second call → corrected fixture
	resp2 := doCompletion(t, s, "mock-operational")
	if !strings.Contains(resp2, "web_fetch") {
		t.Errorf("call 2: expected web_fetch, got: %s", resp2)
	}

	// Third call (beyond sequence) → repeats last
	resp3 := doCompletion(t, s, "mock-operational")
	if !strings.Contains(resp3, "web_fetch") {
		t.Errorf("call 3: expected web_fetch (repeat last), got: %s", resp3)
	}

	// Strategic calls are independent
	stratResp := doCompletion(t, s, "mock-strategic")
	if !strings.Contains(stratResp, "check email") {
		t.Errorf("strategic: expected check email, got: %s", stratResp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	fixtures := map[string][]string{
		"mock-strategic": {`{"objective":"test"}`},
		"mock-tactical":  {`{"steps":[]}`},
	}

	s := newMockServer(fixtures)

	doCompletion(t, s, "mock-strategic")
	doCompletion(t, s, "mock-strategic")
	doCompletion(t, s, "mock-tactical")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}

	if stats.TotalCalls != 3 {
		t.Errorf("total_calls: expected 3, got %d", stats.TotalCalls)
	}
	if stats.CallsByModel["mock-strategic"] != 2 {
		t.Errorf("mock-strategic calls: expected 2, got %d", stats.CallsByModel["mock-strategic"])
	}
	if stats.CallsByModel["mock-tactical"] != 1 {
		t.Errorf("mock-tactical calls: expected 1, got %d", stats.CallsByModel["mock-tactical"])
	}
}

func TestStripMockPrefix(t *testing.T) {
	fixtures := map[string][]string{
		"strategic": {`{"objective":"test"}`},
	}

	s := newMockServer(fixtures)

	// Request with "mock-" prefix should resolve to "strategic"
	resp := doCompletion(t, s, "mock-strategic")
	if !strings.Contains(resp, "test") {
		t.Errorf("expected mock-prefix stripping to resolve, got: %s", resp)
	}
}

func TestUnknownModel(t *testing.T) {
	s := newMockServer(map[string][]string{
		"mock-strategic": {`{"objective":"test"}`},
	})

	body := strings.NewReader(`{"model":"mystery","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d", w.Code)
	}
}

func TestNumberedFileRegex(t *testing.T) {
	tests := []struct {
		filename string
		wantBase string
		wantNum  string
		match    bool
	}{
		{"mock-operational.1.json", "mock-operational", "1", true},
		{"mock-operational.2.json", "mock-operational", "2", true},
		{"mock-operational.10.json", "mock-operational", "10", true},
		{"mock-operational.json", "", "", false},
		{"mock-fast.json", "", "", false},
	}

	for _, tt := range tests {
		matches := numberedFileRe.FindStringSubmatch(tt.filename)
		if tt.match {
			if matches == nil {
				t.Errorf("%s: expected match, got nil", tt.filename)
				continue
			}
			if matches[1] != tt.wantBase {
				t.Errorf("%s: base=%q, want %q", tt.filename, matches[1], tt.wantBase)
			}
			if matches[2] != tt.wantNum {
				t.Errorf("%s: num=%q, want %q", tt.filename, matches[2], tt.wantNum)
			}
		} else {
			if matches != nil {
				t.Errorf("%s: expected no match, got %v", tt.filename, matches)
			}
		}
	}
}

// --- helpers ---

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func doCompletion(t *testing.T, s *mockServer, model string) string {
	t.Helper()
	body := strings.NewReader(`{"model":"` + model + `","messages":[{"role":"user","content":"test"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("model %s: status %d, body: %s", model, w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Choices) == 0 {
		t.Fatalf("no choices in response")
	}

	return resp.Choices[0].Message.Content
}
