package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// PixelRecord is one row of the per-pixel diagnostics file
type PixelRecord struct {
	Level        int     `csv:"level"`
	Row          int     `csv:"row"`
	Col          int     `csv:"col"`
	Status       string  `csv:"status"`
	Steps        int     `csv:"steps"`
	Invalid      bool    `csv:"invalid"`
	Fallbacks    int     `csv:"fallbacks"`
	NullResidual float64 `csv:"null_residual"`
	I            float64 `csv:"i"`
}

// WriteDiagnostics writes records as CSV with a header row
func WriteDiagnostics(w io.Writer, records []PixelRecord) error {
	return gocsv.Marshal(records, w)
}

// WriteDiagnosticsFile writes records to a new CSV file at path
func WriteDiagnosticsFile(path string, records []PixelRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating diagnostics file: %w", err)
	}
	if err := WriteDiagnostics(f, records); err != nil {
		f.Close()
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return f.Close()
}
