package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

var formats = []string{"table", "json", "sarif", "markdown"}

func checkFormat(format string) error {
	for _, f := range formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, formats)
}

func render(w io.Writer, rep *report.Report, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "sarif":
		data, err := report.ToSARIF(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "markdown":
		return report.WriteMarkdown(w, rep)
	default:
		return report.WriteTable(w, rep)
	}
}
