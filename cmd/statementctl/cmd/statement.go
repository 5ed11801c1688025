package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bank-reconciliation-engine/internal/domain/reconciliation"
	"github.com/bank-reconciliation-engine/internal/statement"
)

const (
	outputConsole = "console"
	outputJSON    = "json"
	formatAuto    = "auto"
)

func validateOutputFormat(format string) error {
	if format != outputConsole && format != outputJSON {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", format)
	}
	return nil
}

// resolveFormat maps the --format flag to a statement format. "auto" picks
// MT940 when the file carries a :61: statement line.
func resolveFormat(flag, raw string) (reconciliation.Format, error) {
	if strings.EqualFold(flag, formatAuto) || flag == "" {
		if strings.Contains(raw, ":61:") && strings.Contains(raw, ":20:") {
			return reconciliation.FormatMT940, nil
		}
		return reconciliation.FormatCSV, nil
	}
	format := reconciliation.Format(strings.ToUpper(flag))
	if !format.Valid() {
		return "", fmt.Errorf("invalid statement format '%s'. Valid formats: auto, CSV, MT940", flag)
	}
	return format, nil
}

// loadStatement reads and parses a statement file
func loadStatement(logger *slog.Logger, path, formatFlag string) (*statement.Result, error) {
	if err := validateFileExists(path, "statement file"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file: %w", err)
	}
	raw := string(data)

	format, err := resolveFormat(formatFlag, raw)
	if err != nil {
		return nil, err
	}
	logger.Debug("Parsing statement", "file", path, "format", format)

	result, err := statement.NewParser(logger).Parse(raw, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	return result, nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
