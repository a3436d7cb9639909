// Package module implements the reflector's module runtime: class/name
// identity, the module interface capability set, the lifecycle state
// machine, and the process-wide registry that loads, finds, and tears
// down modules.
package module

import (
	"fmt"
	"regexp"

	"github.com/dantte-lp/goreflector/internal/errctx"
)

// Class identifies which of the reflector's six module classes a module
// belongs to.
type Class int

const (
	ClassListener Class = iota
	ClassProcessor
	ClassSender
	ClassAAA
	ClassManagement
	ClassMsgInterface
)

// classAll is the pseudo-class "reflector", meaning every class, accepted
// only by Registry.ForEach.
const classAll Class = -1

func (c Class) String() string {
	switch c {
	case ClassListener:
		return "listener"
	case ClassProcessor:
		return "processor"
	case ClassSender:
		return "sender"
	case ClassAAA:
		return "aaa"
	case ClassManagement:
		return "management"
	case ClassMsgInterface:
		return "msg-interface"
	case classAll:
		return "reflector"
	default:
		return "class(?)"
	}
}

// ParseClass maps a wire identifier (§6) back to a Class.
func ParseClass(s string) (Class, bool) {
	switch s {
	case "listener":
		return ClassListener, true
	case "processor":
		return ClassProcessor, true
	case "sender":
		return ClassSender, true
	case "aaa":
		return ClassAAA, true
	case "management":
		return ClassManagement, true
	case "msg-interface":
		return ClassMsgInterface, true
	case "reflector":
		return classAll, true
	default:
		return 0, false
	}
}

// ID is a module's wire identity: (class, name) is unique reflector-wide.
type ID struct {
	Class Class
	Name  string
}

func (id ID) String() string { return fmt.Sprintf("%s/%s", id.Class, id.Name) }

// Well-known names, mirroring the original's named module constants.
const (
	NameProcessorMaster  = "master"
	NameSenderMaster     = "master"
	NameAAAAdministrative = "administrative"
	NameAAARouting       = "routing"
	NameManagementMaster = "master"
)

// Version is the module interface version this runtime understands.
// A module whose interface reports a different version fails to load
// with errctx.KindModuleIncompatible.
const Version = 0x03

// Param is one module parameter: name, human description, compile-time
// default, and a runtime-replaceable current value. All three value
// fields are owned copies, mirroring the original's modparam struct.
type Param struct {
	Name    string
	Desc    string
	Default string
	Value   string
}

// ParamSet is a module's named parameter table, initialised from a
// compile-time descriptor and mutable afterward via Set.
type ParamSet struct {
	params map[string]*Param
	order  []string
}

// NewParamSet builds a ParamSet from descriptors, copying Default into
// Value for each.
func NewParamSet(descriptors []Param) *ParamSet {
	ps := &ParamSet{params: make(map[string]*Param, len(descriptors))}
	for _, d := range descriptors {
		p := d
		p.Value = d.Default
		ps.params[d.Name] = &p
		ps.order = append(ps.order, d.Name)
	}
	return ps
}

// Get returns a parameter's current value.
func (ps *ParamSet) Get(name string) (string, bool) {
	if ps == nil {
		return "", false
	}
	p, ok := ps.params[name]
	if !ok {
		return "", false
	}
	return p.Value, true
}

// Set replaces a parameter's current value; it fails if name is unknown.
func (ps *ParamSet) Set(name, value string) error {
	p, ok := ps.params[name]
	if !ok {
		return fmt.Errorf("module: unknown parameter %q: %w",
			name, kindErr(errctx.KindModuleParameterSet))
	}
	p.Value = value
	return nil
}

// Names returns parameter names in declaration order.
func (ps *ParamSet) Names() []string {
	if ps == nil {
		return nil
	}
	out := make([]string, len(ps.order))
	copy(out, ps.order)
	return out
}

func kindErr(k errctx.Kind) error { return fmt.Errorf("%s", k) }

// ConflictPattern is either a literal module name or a regular expression,
// as returned by Interface.Conflicts.
type ConflictPattern struct {
	Class Class
	Regex *regexp.Regexp
	Name  string
}

// Matches reports whether id conflicts with this pattern.
func (cp ConflictPattern) Matches(id ID) bool {
	if cp.Class != id.Class {
		return false
	}
	if cp.Regex != nil {
		return cp.Regex.MatchString(id.Name)
	}
	return cp.Name == id.Name
}
