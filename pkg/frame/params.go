package frame

import (
	"fmt"
	"regexp"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	conditionRe   = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(===|!==|==|!=)\s*(?:"([^"]*)"|'([^']*)')\s*$`)
)

// Condition is a parsed parameter visibility rule such as
// backgroundColor === "custom".
type Condition struct {
	Param  string
	Negate bool
	Value  string
}

// ParseCondition parses `param === "value"` and `param !== "value"`
func ParseCondition(s string) (Condition, error) {
	m := conditionRe.FindStringSubmatch(s)
	if m == nil {
		return Condition{}, fmt.Errorf("unsupported condition %q", s)
	}
	value := m[3]
	if value == "" {
		value = m[4]
	}
	return Condition{
		Param:  m[1],
		Negate: m[2] == "!==" || m[2] == "!=",
		Value:  value,
	}, nil
}

// Holds evaluates the condition against resolved parameter values
func (c Condition) Holds(values map[string]string) bool {
	eq := values[c.Param] == c.Value
	if c.Negate {
		return !eq
	}
	return eq
}

// Active reports whether the parameter should be offered for editing.
// Unparseable conditions leave the parameter visible.
func (p Parameter) Active(values map[string]string) bool {
	if p.Condition == "" {
		return true
	}
	c, err := ParseCondition(p.Condition)
	if err != nil {
		return true
	}
	return c.Holds(values)
}

// Defaults returns every parameter's default value keyed by id
func (f *Frame) Defaults() map[string]string {
	out := make(map[string]string, len(f.Parameters))
	for _, p := range f.Parameters {
		out[p.ID] = p.DefaultValue
	}
	return out
}

// Resolve overlays overrides on the defaults. Keys that are not parameters of
// the frame are ignored.
func (f *Frame) Resolve(overrides map[string]string) map[string]string {
	out := f.Defaults()
	for k, v := range overrides {
		if _, ok := out[k]; ok {
			out[k] = v
		}
	}
	return out
}

// ActiveParameters returns the parameters whose conditions hold for values
func (f *Frame) ActiveParameters(values map[string]string) []Parameter {
	var out []Parameter
	for _, p := range f.Parameters {
		if p.Active(values) {
			out = append(out, p)
		}
	}
	return out
}

// Parameter looks up a parameter by id
func (f *Frame) Parameter(id string) (Parameter, bool) {
	for _, p := range f.Parameters {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// Interpolate replaces {{id}} placeholders with values. Unknown placeholders
// (such as {{croppedImage}}) are left untouched.
func Interpolate(s string, values map[string]string) string {
	if len(values) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		id := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := values[id]; ok {
			return v
		}
		return m
	})
}
