package command

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/spf13/pflag"
)

// Kind is the value type of an option.
type Kind int

const (
	Bool Kind = iota
	String
	Int
	// StringSlice options may be repeated.
	StringSlice
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case String:
		return "string"
	case Int:
		return "int"
	case StringSlice:
		return "string list"
	default:
		return "unknown"
	}
}

// Option declares one flag of a command.
type Option struct {
	Name  string
	Short string
	Kind  Kind
	// Default must match Kind: bool, string, int or []string.
	Default any
	Usage   string
}

// Options holds parsed option values.
type Options struct {
	values  map[string]any
	changed map[string]bool
}

// NewOptions builds Options from literal values, for callers that run a
// command directly.
func NewOptions(values map[string]any) Options {
	return Options{values: values}
}

// Bool returns a bool option, false when unset.
func (o Options) Bool(name string) bool {
	v, _ := o.values[name].(bool)
	return v
}

// String returns a string option.
func (o Options) String(name string) string {
	v, _ := o.values[name].(string)
	return v
}

// Int returns an int option.
func (o Options) Int(name string) int {
	v, _ := o.values[name].(int)
	return v
}

// Strings returns a repeated option.
func (o Options) Strings(name string) []string {
	v, _ := o.values[name].([]string)
	return slices.Clone(v)
}

// Changed reports whether the option was given on the command line.
func (o Options) Changed(name string) bool {
	return o.changed[name]
}

// flagSet builds the pflag set for a command's options. The returned map
// holds the destination of each flag.
func (s Spec) flagSet() (*pflag.FlagSet, map[string]any) {
	fs := pflag.NewFlagSet(s.Name, pflag.ContinueOnError)
	fs.SortFlags = false
	dest := make(map[string]any, len(s.Options))

	for _, opt := range s.Options {
		switch opt.Kind {
		case Bool:
			def, _ := opt.Default.(bool)
			dest[opt.Name] = fs.BoolP(opt.Name, opt.Short, def, opt.Usage)
		case String:
			def, _ := opt.Default.(string)
			dest[opt.Name] = fs.StringP(opt.Name, opt.Short, def, opt.Usage)
		case Int:
			def, _ := opt.Default.(int)
			dest[opt.Name] = fs.IntP(opt.Name, opt.Short, def, opt.Usage)
		case StringSlice:
			def, _ := opt.Default.([]string)
			dest[opt.Name] = fs.StringArrayP(opt.Name, opt.Short, def, opt.Usage)
		}
	}
	return fs, dest
}

// collect reads parsed flag values. Options left unset on the command line
// take their value from defaults when present.
func (s Spec) collect(fs *pflag.FlagSet, dest map[string]any, defaults map[string]any) (Options, error) {
	opts := Options{
		values:  make(map[string]any, len(s.Options)),
		changed: make(map[string]bool),
	}

	for _, opt := range s.Options {
		if fs.Changed(opt.Name) {
			opts.changed[opt.Name] = true
		} else if raw, ok := defaults[opt.Name]; ok {
			v, err := coerce(opt.Kind, raw)
			if err != nil {
				return Options{}, fmt.Errorf("config value for --%s: %w", opt.Name, err)
			}
			opts.values[opt.Name] = v
			continue
		}

		switch p := dest[opt.Name].(type) {
		case *bool:
			opts.values[opt.Name] = *p
		case *string:
			opts.values[opt.Name] = *p
		case *int:
			opts.values[opt.Name] = *p
		case *[]string:
			opts.values[opt.Name] = slices.Clone(*p)
		}
	}
	return opts, nil
}

// coerce converts a decoded config value (JSON numbers arrive as float64,
// YAML numbers as int) to the option's kind.
func coerce(kind Kind, raw any) (any, error) {
	switch kind {
	case Bool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case String:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int, int64, float64, bool:
			return fmt.Sprint(v), nil
		}
	case Int:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case string:
			return strconv.Atoi(v)
		}
	case StringSlice:
		switch v := raw.(type) {
		case string:
			return []string{v}, nil
		case []string:
			return slices.Clone(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected a list of strings, got %T element", item)
				}
				out = append(out, s)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, raw)
}
