package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"batchflow/internal/config"
	"batchflow/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(logging.LogFilePath(&cfg))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerLiftsSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, logging.Options{Format: "console", Level: "info"})
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	ctx := logging.WithRunID(context.Background(), "run-7")
	ctx = logging.WithStage(ctx, "first-map")
	ctx = logging.WithItemIndex(ctx, 2)
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "batchmap")).Warn("item captured",
		logging.String("error_message", "boom"),
		logging.Error(errors.New("first step was set not to pass")),
	)

	line := buf.String()
	for _, fragment := range []string{"WARN batchmap [run-7 first-map #2]: item captured", `error_message=boom`, `error="first step was set not to pass"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, logging.Options{Format: "json", Level: "info"})
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	ctx := logging.WithRequestID(logging.WithCollection(context.Background(), "secondSteps"), "req-1")
	logging.WithContext(ctx, logger).Info("map stage completed")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["collection"] != "secondSteps" || payload["correlation_id"] != "req-1" {
		t.Fatalf("missing context fields: %#v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lower-case level, got %#v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextHelpersIgnoreBlankValues(t *testing.T) {
	ctx := logging.WithStage(logging.WithRunID(context.Background(), ""), "")
	if _, ok := logging.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id")
	}
	if _, ok := logging.StageFromContext(ctx); ok {
		t.Fatal("expected no stage")
	}
	if fields := logging.ContextFields(ctx); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}
