package lti

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// OutcomeType is the value type of an outcome
type OutcomeType string

// Outcome value types
const (
	OutcomeDecimal      OutcomeType = "decimal"
	OutcomePercentage   OutcomeType = "percentage"
	OutcomeRatio        OutcomeType = "ratio"
	OutcomeLetterAF     OutcomeType = "letteraf"
	OutcomeLetterAFPlus OutcomeType = "letterafplus"
	OutcomePassFail     OutcomeType = "passfail"
	OutcomeText         OutcomeType = "freetext"
)

// OutcomeDateFormat is the format of Outcome.Date
const OutcomeDateFormat = "2006-01-02T15:04:05Z"

// Outcome is a single grade
type Outcome struct {
	Type       OutcomeType
	Value      string
	Language   string
	Status     string
	Date       string
	DataSource string
	// SourcedID overrides the result sourcedid of the user
	SourcedID string
}

// NewOutcome returns a decimal outcome dated now
func NewOutcome(value string, now time.Time) *Outcome {
	return &Outcome{
		Type:     OutcomeDecimal,
		Value:    value,
		Language: "en-US",
		Date:     now.UTC().Format(OutcomeDateFormat),
	}
}

// SupportedTypes parses a comma separated list of outcome types; an empty list
// means decimal only
func SupportedTypes(list string) []OutcomeType {
	var out []OutcomeType
	for _, t := range strings.Split(strings.ToLower(strings.ReplaceAll(list, " ", "")), ",") {
		if t != "" {
			out = append(out, OutcomeType(t))
		}
	}
	if len(out) == 0 {
		out = []OutcomeType{OutcomeDecimal}
	}
	return out
}

// CheckValueType converts the outcome into one of the supported types if its
// own type is not supported. It returns false if no conversion is possible;
// the outcome is then left unchanged. An empty value is always accepted.
func (o *Outcome) CheckValueType(supported []OutcomeType) bool {
	if o.Value == "" || slices.Contains(supported, o.Type) {
		return true
	}
	switch o.Type {
	case OutcomePercentage:
		v, ok := parseNumber(strings.TrimSuffix(o.Value, "%"))
		if !ok || v < 0 || v > 100 {
			return false
		}
		o.setDecimal(v / 100)
		return true
	case OutcomeRatio:
		parts := strings.SplitN(o.Value, "/", 2)
		if len(parts) != 2 {
			return false
		}
		num, ok1 := parseNumber(parts[0])
		den, ok2 := parseNumber(parts[1])
		if !ok1 || !ok2 || num < 0 || den <= 0 {
			return false
		}
		o.setDecimal(num / den)
		return true
	case OutcomeLetterAF:
		switch {
		case slices.Contains(supported, OutcomeLetterAFPlus):
			o.Type = OutcomeLetterAFPlus
		case slices.Contains(supported, OutcomeText):
			o.Type = OutcomeText
		default:
			return false
		}
		return true
	case OutcomeLetterAFPlus:
		switch {
		case slices.Contains(supported, OutcomeLetterAF) && len(o.Value) == 1:
			o.Type = OutcomeLetterAF
		case slices.Contains(supported, OutcomeText):
			o.Type = OutcomeText
		default:
			return false
		}
		return true
	case OutcomeText:
		if v, ok := parseNumber(o.Value); ok && v >= 0 && v <= 1 {
			o.Type = OutcomeDecimal
			return true
		}
		if !strings.HasSuffix(o.Value, "%") {
			return false
		}
		v, ok := parseNumber(strings.TrimSuffix(o.Value, "%"))
		if !ok || v < 0 || v > 100 {
			return false
		}
		if slices.Contains(supported, OutcomePercentage) {
			o.Type = OutcomePercentage
		} else {
			o.setDecimal(v / 100)
		}
		return true
	}
	return false
}

func (o *Outcome) setDecimal(v float64) {
	o.Type = OutcomeDecimal
	o.Value = strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
