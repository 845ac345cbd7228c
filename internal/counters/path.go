package counters

import (
	"errors"
	"strconv"
	"strings"
)

// Path is a resolved counter path split into its elements.
// Only paths that existed at resolution time are turned into a Path.
type Path struct {
	Machine  string
	Object   string
	Instance string
	Parent   string
	Index    uint32
	Counter  string
}

// HasInstance reports whether the counter belongs to a multi-instance object
func (p Path) HasInstance() bool {
	return p.Instance != ""
}

// InstanceLabel returns the instance in PDH notation: [parent/]instance[#index]
func (p Path) InstanceLabel() string {
	if p.Instance == "" {
		return ""
	}
	label := p.Instance
	if p.Parent != "" {
		label = p.Parent + "/" + label
	}
	if p.Index > 0 {
		label += "#" + strconv.FormatUint(uint64(p.Index), 10)
	}
	return label
}

// String formats the path back to \\machine\object(parent/instance#index)\counter
func (p Path) String() string {
	var b strings.Builder
	if p.Machine != "" {
		b.WriteString(`\\`)
		b.WriteString(strings.TrimPrefix(p.Machine, `\\`))
	}
	b.WriteByte('\\')
	b.WriteString(p.Object)
	if p.Instance != "" {
		b.WriteByte('(')
		b.WriteString(p.InstanceLabel())
		b.WriteByte(')')
	}
	b.WriteByte('\\')
	b.WriteString(p.Counter)
	return b.String()
}

var errMalformedPath = errors.New(`expected \object[(instance)]\counter`)

// ParsePath splits a counter path without consulting the OS.
// Wildcards are kept verbatim in the element they appear in.
func ParsePath(s string) (Path, error) {
	var p Path
	rest := strings.TrimSpace(s)

	if strings.HasPrefix(rest, `\\`) {
		rest = rest[2:]
		i := strings.IndexByte(rest, '\\')
		if i <= 0 {
			return Path{}, &ParseError{Path: s, Err: errMalformedPath}
		}
		p.Machine = rest[:i]
		rest = rest[i:]
	}

	if !strings.HasPrefix(rest, `\`) {
		return Path{}, &ParseError{Path: s, Err: errMalformedPath}
	}
	rest = rest[1:]

	// The counter is everything after the last separator that is not inside
	// the instance parentheses.
	objectPart, counter, ok := splitCounter(rest)
	if !ok || counter == "" || objectPart == "" {
		return Path{}, &ParseError{Path: s, Err: errMalformedPath}
	}
	p.Counter = counter

	open := strings.IndexByte(objectPart, '(')
	if open < 0 {
		p.Object = objectPart
		return p, nil
	}
	closing := strings.LastIndexByte(objectPart, ')')
	if closing != len(objectPart)-1 || closing < open {
		return Path{}, &ParseError{Path: s, Err: errMalformedPath}
	}
	p.Object = objectPart[:open]
	if p.Object == "" {
		return Path{}, &ParseError{Path: s, Err: errMalformedPath}
	}

	instance := objectPart[open+1 : closing]
	if slash := strings.IndexByte(instance, '/'); slash >= 0 {
		p.Parent = instance[:slash]
		instance = instance[slash+1:]
	}
	if hash := strings.LastIndexByte(instance, '#'); hash >= 0 {
		if idx, err := strconv.ParseUint(instance[hash+1:], 10, 32); err == nil {
			p.Index = uint32(idx)
			instance = instance[:hash]
		}
	}
	p.Instance = instance
	if p.Instance == "" {
		return Path{}, &ParseError{Path: s, Err: errMalformedPath}
	}
	return p, nil
}

func splitCounter(s string) (objectPart, counter string, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\\':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}
