package tool

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var hostLabelPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// Values are pre-configured values available to endpoint templates. They are
// injected at construction time and never changed by invocations.
type Values map[string]string

// templateSource resolves placeholders for one invocation. A placeholder
// naming a declared parameter reads the invocation argument and nothing else;
// any other placeholder reads the configured values. Arguments that are not
// declared can therefore never reach a request.
type templateSource struct {
	declared map[string]struct{}
	args     Args
	values   Values
}

func newTemplateSource(schema Schema, args Args, values Values) templateSource {
	declared := make(map[string]struct{}, len(schema.Parameters))
	for _, p := range schema.Parameters {
		declared[p.Name] = struct{}{}
	}
	return templateSource{declared: declared, args: args, values: values}
}

func (s templateSource) isArgument(name string) bool {
	_, ok := s.declared[name]
	return ok
}

func (s templateSource) lookup(name string) (string, bool) {
	if s.isArgument(name) {
		v, ok := s.args.Lookup(name)
		return v, ok && v != ""
	}
	v, ok := s.values[name]
	return v, ok && v != ""
}

// expand replaces every {name} placeholder in tmpl. A placeholder that
// resolves to nothing is an error so that requests are never sent with
// silently empty segments.
func expand(tmpl string, src templateSource) (string, error) {
	return render(tmpl, func(name string, _ int) (string, error) {
		value, ok := src.lookup(name)
		if !ok {
			return "", fmt.Errorf("no value for placeholder {%s}", name)
		}
		return value, nil
	})
}

// expandURL is expand for URL templates. Values placed in the host must be a
// single DNS label and values placed after it are path-escaped, so no value
// can redirect the request to another host.
func expandURL(tmpl string, src templateSource) (string, error) {
	hostEnd := len(tmpl)
	if scheme := strings.Index(tmpl, "://"); scheme >= 0 {
		if slash := strings.IndexByte(tmpl[scheme+3:], '/'); slash >= 0 {
			hostEnd = scheme + 3 + slash
		}
	}
	return render(tmpl, func(name string, at int) (string, error) {
		value, ok := src.lookup(name)
		if !ok {
			return "", fmt.Errorf("no value for placeholder {%s}", name)
		}
		if at < hostEnd {
			if !hostLabelPattern.MatchString(value) {
				return "", fmt.Errorf("placeholder {%s} is not a valid host label", name)
			}
			return value, nil
		}
		return url.PathEscape(value), nil
	})
}

func render(tmpl string, substitute func(name string, at int) (string, error)) (string, error) {
	if !strings.Contains(tmpl, "{") {
		return tmpl, nil
	}

	var b strings.Builder
	rest := tmpl
	consumed := 0
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tmpl)
		}
		closing += open

		name := strings.TrimSpace(rest[open+1 : closing])
		if name == "" {
			return "", fmt.Errorf("empty placeholder in %q", tmpl)
		}
		value, err := substitute(name, consumed+open)
		if err != nil {
			return "", err
		}

		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[closing+1:]
		consumed += closing + 1
	}
}
