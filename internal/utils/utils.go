package utils

import (
	"strings"

	"github.com/fatih/structs"
)

// FirstNonEmpty returns the first of the passed strings that is not empty
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SplitList splits a comma separated list, dropping whitespace and empty
// entries
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(s, " ", ""), ",") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FieldTagNames returns the names set in the passed tag of the passed fields
func FieldTagNames(fields []*structs.Field, tag string) (names []string) {
	for _, f := range fields {
		if f == nil {
			continue
		}
		t := f.Tag(tag)
		if i := strings.IndexRune(t, ','); i > 0 {
			t = t[:i]
		}
		if t != "" && t != "-" {
			names = append(names, t)
		}
	}
	return
}
