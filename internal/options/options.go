// Package options implements generic key=value parsing and struct binding
// for backend configuration, letting each backend declare its own tunables
// (e.g. local's "connections") without a central schema.
package options

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coldeck/mrcore/internal/errors"
)

// Options holds options as key/value pairs.
type Options map[string]string

var extendedOptions = make(map[string]interface{})

// Register registers the options for a specific backend type, so List can
// enumerate them.
func Register(ns string, opts interface{}) {
	extendedOptions[ns] = opts
}

// Parse takes a slice of key=value pairs and returns an Options map. Keys
// are lower-cased; a key given more than once with different values is an
// error.
func Parse(options []string) (Options, error) {
	opts := make(Options)

	for _, opt := range options {
		p := strings.SplitN(opt, "=", 2)
		name := strings.ToLower(strings.TrimSpace(p[0]))
		var value string
		if len(p) > 1 {
			value = strings.TrimSpace(p[1])
		}

		if name == "" {
			return nil, errors.Fatal("empty key is not a valid option")
		}

		if v, ok := opts[name]; ok && v != value {
			return nil, errors.Fatalf("key %q present more than once", name)
		}

		opts[name] = value
	}

	return opts, nil
}

// Extract returns a new Options map with all options from namespace ns
// (e.g. "s3.connections") rewritten to their bare key ("connections").
// Options from other namespaces, and unqualified global options, are
// dropped.
func (o Options) Extract(ns string) Options {
	n := make(Options)

	for k, v := range o {
		p := strings.SplitN(k, ".", 2)
		if len(p) != 2 {
			continue
		}

		if p[0] == ns {
			n[p[1]] = v
		}
	}

	return n
}

// Apply sets the option values found in o on the fields of dst (a pointer
// to a struct) tagged with `option:"name"`. namespace is used only for
// error messages.
func (o Options) Apply(namespace string, dst interface{}) error {
	v := reflect.ValueOf(dst).Elem()
	n := v.NumField()

	fieldNames := make(map[string]string)
	for i := 0; i < n; i++ {
		field := v.Type().Field(i)
		tagValue := field.Tag.Get("option")
		if tagValue == "" {
			continue
		}

		fieldNames[tagValue] = field.Name
	}

	for k, val := range o {
		fieldName, ok := fieldNames[k]
		if !ok {
			if namespace != "" {
				k = namespace + "." + k
			}
			return errors.Fatalf("option %s is not known", k)
		}

		f := v.FieldByName(fieldName)
		i := f.Addr().Interface()

		switch dst := i.(type) {
		case *string:
			*dst = val
			continue
		case *int:
			io, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				return errors.WithStack(err)
			}
			*dst = int(io)
			continue
		case *uint:
			io, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return errors.WithStack(err)
			}
			*dst = uint(io)
			continue
		case *bool:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return errors.WithStack(err)
			}
			*dst = b
			continue
		case *time.Duration:
			d, err := time.ParseDuration(val)
			if err != nil {
				return errors.WithStack(err)
			}
			*dst = d
			continue
		case *SecretString:
			*dst = NewSecretString(val)
			continue
		}

		return errors.Fatalf("field %s has type %T, not supported", fieldName, i)
	}

	return nil
}

// Help describes a single registered option.
type Help struct {
	Namespace, Name, Text string
}

func listOptions(cfg interface{}) (opts []Help) {
	v := reflect.Indirect(reflect.ValueOf(cfg))
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		optName := field.Tag.Get("option")
		if optName == "" {
			continue
		}

		opts = append(opts, Help{
			Name: optName,
			Text: field.Tag.Get("help"),
		})
	}

	return opts
}

func appendAllOptions(opts []Help, ns string, cfg interface{}) []Help {
	for _, opt := range listOptions(cfg) {
		opt.Namespace = ns
		opts = append(opts, opt)
	}

	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Namespace != opts[j].Namespace {
			return opts[i].Namespace < opts[j].Namespace
		}
		return opts[i].Name < opts[j].Name
	})

	return opts
}

// List returns all registered options, sorted by namespace then name.
func List() (opts []Help) {
	for ns, cfg := range extendedOptions {
		opts = appendAllOptions(opts, ns, cfg)
	}

	return opts
}

// String returns a table of all registered options, for inclusion in a
// help message.
func String() string {
	var sb strings.Builder
	for _, opt := range List() {
		fmt.Fprintf(&sb, "  %s.%-15s  %s\n", opt.Namespace, opt.Name, opt.Text)
	}
	return sb.String()
}
