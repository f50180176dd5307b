package driver_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eva/internal/driver"
)

func TestExecReturnsResult(t *testing.T) {
	value, _, err := driver.Exec(`(+ 1 2)`, driver.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.IsNumber() || value.Num != 3 {
		t.Errorf("expected 3, got %s", value)
	}
}

func TestExecMultipleTopLevelForms(t *testing.T) {
	value, _, err := driver.Exec(`(var x 10) (set x (+ x 5)) x`, driver.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Num != 15 {
		t.Errorf("expected 15, got %s", value)
	}
}

func TestCompileErrorSurfacesDiagnostics(t *testing.T) {
	_, res, err := driver.Exec(`(undefined-function 1)`, driver.Options{})
	if !errors.Is(err, driver.ErrCompileFailed) {
		t.Fatalf("expected ErrCompileFailed, got %v", err)
	}
	if res == nil || !res.Bag.HasErrors() {
		t.Fatal("expected diagnostics in the bag")
	}
}

func TestParseErrorSurfacesDiagnostics(t *testing.T) {
	_, res, err := driver.Exec(`(+ 1`, driver.Options{})
	if !errors.Is(err, driver.ErrCompileFailed) {
		t.Fatalf("expected ErrCompileFailed, got %v", err)
	}
	if !res.Bag.HasErrors() {
		t.Fatal("expected diagnostics in the bag")
	}
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.eva")
	if err := os.WriteFile(path, []byte(`(def square (x) (* x x)) (square 7)`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := driver.CompileFile(path, driver.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := driver.Run(res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Num != 49 {
		t.Errorf("expected 49, got %s", value)
	}
}

func TestCheckCacheRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cache, err := driver.OpenCheckCache("eva-test")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "prog.eva")
	if err := os.WriteFile(path, []byte(`(bogus)`), 0o644); err != nil {
		t.Fatal(err)
	}

	key, err := driver.ContentKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, hit := cache.Load(key); hit {
		t.Fatal("unexpected cache hit before store")
	}

	res, err := driver.CompileFile(path, driver.Options{})
	if !errors.Is(err, driver.ErrCompileFailed) {
		t.Fatalf("expected ErrCompileFailed, got %v", err)
	}
	if err := cache.Store(key, driver.PayloadFromResult(path, res)); err != nil {
		t.Fatalf("store: %v", err)
	}

	payload, hit := cache.Load(key)
	if !hit {
		t.Fatal("expected cache hit after store")
	}
	if !payload.HasErrors() {
		t.Error("cached payload must preserve the error")
	}
	if len(payload.Diagnostics) == 0 || payload.Diagnostics[0].Message == "" {
		t.Errorf("cached diagnostics incomplete: %+v", payload.Diagnostics)
	}
}

func TestCheckCacheKeyTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.eva")

	if err := os.WriteFile(path, []byte(`1`), 0o644); err != nil {
		t.Fatal(err)
	}
	key1, err := driver.ContentKey(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`2`), 0o644); err != nil {
		t.Fatal(err)
	}
	key2, err := driver.ContentKey(path)
	if err != nil {
		t.Fatal(err)
	}

	if key1 == key2 {
		t.Error("different content must produce different keys")
	}
}
