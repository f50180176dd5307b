package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "demo"

[vm]
stack-size = 1024
gc-threshold = 4096
disassemble = true
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Package.Name != "demo" {
		t.Errorf("name: %q", m.Package.Name)
	}
	if m.VM.StackSize != 1024 {
		t.Errorf("stack-size: %d", m.VM.StackSize)
	}
	if m.VM.GCThreshold != 4096 {
		t.Errorf("gc-threshold: %d", m.VM.GCThreshold)
	}
	if !m.VM.Disassemble {
		t.Error("disassemble must be true")
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for missing [package].name")
	}
}

func TestLoadNear(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[vm]
gc-threshold = 2048
`)
	program := filepath.Join(dir, "main.eva")

	m, ok, err := LoadNear(program)
	if err != nil {
		t.Fatalf("load near: %v", err)
	}
	if !ok {
		t.Fatal("expected the manifest to be found")
	}
	if m.VM.GCThreshold != 2048 {
		t.Errorf("gc-threshold: %d", m.VM.GCThreshold)
	}
}

func TestLoadNearMissingIsNotAnError(t *testing.T) {
	program := filepath.Join(t.TempDir(), "main.eva")
	_, ok, err := LoadNear(program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("no manifest exists; ok must be false")
	}
}
