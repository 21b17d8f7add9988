package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

const validateFixture = `
start default
define application "App"
uses substance "Sub"
enable domestic
end substance
end application
end default

start simulations
simulate "s" from years 2020 to 2021
end simulations
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestValidateCmdAcceptsWellFormedScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sim")
	if err := os.WriteFile(path, []byte(validateFixture), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code := validateCmd(discardLogger(), []string{path})
	if code != exitOK {
		t.Errorf("expected exitOK, got %d", code)
	}
}

func TestValidateCmdRejectsMalformedScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sim")
	if err := os.WriteFile(path, []byte("start default\nbogus stuff\nend default\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code := validateCmd(discardLogger(), []string{path})
	if code != exitParseError {
		t.Errorf("expected exitParseError, got %d", code)
	}
}

func TestValidateCmdRequiresExactlyOneArg(t *testing.T) {
	code := validateCmd(discardLogger(), []string{})
	if code != exitUsage {
		t.Errorf("expected exitUsage, got %d", code)
	}
}

func TestValidateCmdReportsIOErrorOnMissingFile(t *testing.T) {
	code := validateCmd(discardLogger(), []string{filepath.Join(t.TempDir(), "missing.sim")})
	if code != exitIOError {
		t.Errorf("expected exitIOError, got %d", code)
	}
}
