package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
		if _, err := ParseLevel(in); err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", in, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestJSONLoggerCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, FormatJSON, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("BatchDriver", "image processed", map[string]interface{}{"file": "a.tif", "cells": 3})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "BatchDriver" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["file"] != "a.tif" {
		t.Errorf("file = %v", entry["file"])
	}
	if entry["message"] != "image processed" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(&buf, FormatJSON, "warn")

	log.Debug("x", "hidden", nil)
	log.Info("x", "hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	log.Error("x", errors.New("boom"), nil)
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("error entry missing cause: %s", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	log.Info("x", "y", nil)
	log.Error("x", errors.New("z"), nil)
}
