package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/structs"

	"github.com/go-lti/ltiprovider/internal/utils"
)

// renderRow prints the exported fields of v as a key/value table, using the
// json names of the fields; fields tagged "-" are skipped
func renderRow(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range structs.New(v).Fields() {
		names := utils.FieldTagNames([]*structs.Field{f}, "json")
		if len(names) == 0 {
			if f.Tag("json") != "" {
				continue
			}
			names = []string{f.Name()}
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", names[0], formatValue(f.Value())); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case *time.Time:
		if t == nil {
			return "-"
		}
		return t.Format(time.RFC3339)
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	case *string:
		if t == nil {
			return "-"
		}
		return *t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
