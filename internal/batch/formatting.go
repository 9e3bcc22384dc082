package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ValidFormat reports whether format names a supported output format.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(results []FileResult, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(results)
	case FormatCSV:
		return formatCSV(results)
	case FormatText, "":
		return formatText(results), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatJSON renders results as an indented JSON array.
func formatJSON(results []FileResult) (string, error) {
	if results == nil {
		results = []FileResult{}
	}
	bts, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatCSV renders one row per symbol and one row per file without symbols.
func formatCSV(results []FileResult) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"file", "format", "text", "width", "height", "error"}); err != nil {
		return "", err
	}

	for _, r := range results {
		w, h := strconv.Itoa(r.Width), strconv.Itoa(r.Height)
		if len(r.Symbols) == 0 {
			if err := writer.Write([]string{r.File, "", "", w, h, r.Error}); err != nil {
				return "", err
			}
			continue
		}
		for _, s := range r.Symbols {
			if err := writer.Write([]string{r.File, s.Format, s.Text, w, h, ""}); err != nil {
				return "", err
			}
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText renders one line per symbol, miss or error.
func formatText(results []FileResult) string {
	var output strings.Builder
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(&output, "%s: error: %s\n", r.File, r.Error)
		case len(r.Symbols) == 0:
			fmt.Fprintf(&output, "%s: no barcode found\n", r.File)
		default:
			for _, s := range r.Symbols {
				fmt.Fprintf(&output, "%s: [%s] %s\n", r.File, s.Format, s.Text)
			}
		}
	}
	return output.String()
}
