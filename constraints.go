package ltiprovider

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ParameterConstraint restricts a launch parameter
type ParameterConstraint struct {
	Required  bool
	MaxLength int
	// MessageTypes limits the constraint to these message types; empty
	// means all
	MessageTypes []string
}

func (c ParameterConstraint) appliesTo(messageType string) bool {
	return len(c.MessageTypes) == 0 || slices.Contains(c.MessageTypes, messageType)
}

// SetParameterConstraint adds or replaces the constraint for a launch
// parameter. A maxLength of 0 means no limit.
func (p *ToolProvider) SetParameterConstraint(name string, required bool, maxLength int, messageTypes ...string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := p.constraints[name]; !ok {
		p.constraintOrder = append(p.constraintOrder, name)
	}
	p.constraints[name] = ParameterConstraint{
		Required:     required,
		MaxLength:    maxLength,
		MessageTypes: messageTypes,
	}
}

func (p *ToolProvider) checkConstraints(r *LaunchRequest) error {
	var invalid []string
	messageType := r.MessageType()
	for _, name := range p.constraintOrder {
		c := p.constraints[name]
		if !c.appliesTo(messageType) {
			continue
		}
		v := r.Trimmed(name)
		if c.Required && v == "" {
			invalid = append(invalid, fmt.Sprintf("%s (missing)", name))
			continue
		}
		if c.MaxLength > 0 && utf8.RuneCountInString(v) > c.MaxLength {
			invalid = append(invalid, fmt.Sprintf("%s (too long)", name))
		}
	}
	if len(invalid) > 0 {
		return newError(KindValidation, "Invalid parameter(s): %s", strings.Join(invalid, ", "))
	}
	return nil
}
