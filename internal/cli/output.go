package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysErr("encode output: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// orDash formats an optional value, printing "-" when it is absent.
func orDash[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatAvg(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func formatString(v string) string { return v }
