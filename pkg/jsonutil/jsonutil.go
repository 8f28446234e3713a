// Package jsonutil is the JSON codec of soda, a thin wrapper over
// github.com/go-json-experiment/json. Map keys are always emitted sorted,
// so the same value always encodes to the same bytes.
//
// Usage:
//
//	data, err := jsonutil.MarshalIndent(res, "  ")
//	err = jsonutil.WriteFile("reports/site.test/report.json", rep)
package jsonutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Indent is the indentation of files written by WriteFile.
const Indent = "  "

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the compact JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the JSON encoding of v, one member per line.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true), jsontext.WithIndent(indent))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// ReadFile decodes the JSON file at path into v.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonutil: decode %s: %w", path, err)
	}
	return nil
}

// WriteFile encodes v indented into path, creating parent directories.
// The file is written next to path and renamed into place, so readers
// never see a partial document.
func WriteFile(path string, v any) error {
	data, err := MarshalIndent(v, Indent)
	if err != nil {
		return fmt.Errorf("jsonutil: encode %s: %w", path, err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
