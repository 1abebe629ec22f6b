package rag

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := map[string]string{
		"01_gearbox.txt": "Gearbox Maintenance\n\nGearbox oil temperature above 70°C signals overheating. Replace gearbox oil filters.",
		"02_bearing.txt": "Bearing Failures\n\nElevated vibration precedes most failures. Gearbox oil contamination accelerates wear.",
		"03_blade.txt":   "Blade Inspection\n\nInspect blade surfaces for cracks and erosion after storms.",
	}
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func initializedManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(writeCorpus(t), discardLogger())
	if !m.Initialize() {
		t.Fatal("Initialize failed")
	}
	return m
}

func TestInitializeAndStats(t *testing.T) {
	m := initializedManager(t)
	if !m.Initialized() {
		t.Fatal("expected initialized")
	}
	stats := m.Stats()
	if stats.DocumentsLoaded != 3 {
		t.Errorf("DocumentsLoaded = %d, want 3", stats.DocumentsLoaded)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", stats.TotalChunks)
	}
	if len(stats.DocumentFiles) != 3 || stats.DocumentFiles[0] != "01_gearbox.txt" {
		t.Errorf("DocumentFiles = %v", stats.DocumentFiles)
	}
	if stats.TotalCharacters == 0 {
		t.Error("TotalCharacters should be non-zero")
	}
}

func TestInitializeEmptyDirectory(t *testing.T) {
	m := NewManager(t.TempDir(), discardLogger())
	if m.Initialize() {
		t.Fatal("expected initialization to fail on an empty directory")
	}
	if m.Initialized() {
		t.Error("manager should report uninitialized")
	}
	if ctx := m.RetrieveContext("gearbox oil", 3, 0.05); ctx != "" {
		t.Errorf("expected empty context, got %q", ctx)
	}
	if previews := m.SearchKnowledge("gearbox oil", 3); previews != nil {
		t.Errorf("expected nil previews, got %v", previews)
	}
}

func TestRetrieveContextFormat(t *testing.T) {
	m := initializedManager(t)
	ctx := m.RetrieveContext("gearbox oil", 3, 0)
	if ctx == "" {
		t.Fatal("expected a context block")
	}
	if !strings.HasPrefix(ctx, contextHeader) {
		t.Error("missing knowledge header")
	}
	if !strings.Contains(ctx, "[Source 1: ") {
		t.Errorf("missing source attribution:\n%s", ctx)
	}
	if !strings.Contains(ctx, "01_gearbox.txt") || !strings.Contains(ctx, "02_bearing.txt") {
		t.Errorf("expected both gearbox documents in context:\n%s", ctx)
	}
	if !strings.Contains(ctx, "[Relevance: ") {
		t.Error("missing relevance annotation")
	}
	if !strings.HasSuffix(ctx, contextInstruction) {
		t.Error("missing citation instruction")
	}
	if strings.Contains(ctx, "03_blade.txt") {
		t.Error("unrelated document retrieved")
	}
}

func TestRetrieveContextNoMatch(t *testing.T) {
	m := initializedManager(t)
	if ctx := m.RetrieveContext("quantum flux capacitor", 3, 0.05); ctx != "" {
		t.Errorf("expected empty context for unrelated query, got %q", ctx)
	}
}

func TestSearchKnowledgePreviews(t *testing.T) {
	m := initializedManager(t)
	previews := m.SearchKnowledge("gearbox oil", 3)
	if len(previews) == 0 {
		t.Fatal("expected previews")
	}
	for _, p := range previews {
		if p.SourceFile == "" {
			t.Error("preview missing source file")
		}
		if p.RelevanceScore <= 0 {
			t.Errorf("RelevanceScore = %v", p.RelevanceScore)
		}
		if len(p.ContentPreview) > 203 {
			t.Errorf("preview too long: %d chars", len(p.ContentPreview))
		}
	}
}

func TestReloadPicksUpNewDocuments(t *testing.T) {
	dir := writeCorpus(t)
	m := NewManager(dir, discardLogger())
	if !m.Initialize() {
		t.Fatal("Initialize failed")
	}

	extra := "Yaw System\n\nYaw drive alignment keeps the rotor facing the wind."
	if err := os.WriteFile(filepath.Join(dir, "04_yaw.txt"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}

	if !m.Reload() {
		t.Fatal("Reload failed")
	}
	if got := m.Stats().DocumentsLoaded; got != 4 {
		t.Errorf("DocumentsLoaded after reload = %d, want 4", got)
	}
}
