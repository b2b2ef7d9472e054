// Package plugin implements the Keel plugin lifecycle framework: declaration
// discovery, dependency-ordered startup, handler-mediated acceptance, and
// dependant-aware shutdown.
package plugin

import (
	"reflect"

	"github.com/lcx/keel/utils"
)

// Class identifies a plugin type by package path and type name. It is a
// comparable value and is the identity key for every registry in the
// framework.
type Class struct {
	Pkg  string
	Name string
}

// ClassOf derives the Class of a live value via reflection, unwrapping
// pointers. A nil or unnamed value yields the zero Class.
func ClassOf(v any) Class {
	if v == nil {
		return Class{}
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return Class{}
	}
	return Class{Pkg: t.PkgPath(), Name: t.Name()}
}

// ParseClass parses a fully qualified "pkg/path.TypeName" identity.
func ParseClass(fqn string) (Class, error) {
	pkg, name, err := utils.SplitFQN(fqn)
	if err != nil {
		return Class{}, err
	}
	return Class{Pkg: pkg, Name: name}, nil
}

// MustParseClass is ParseClass for init-time constants; it panics on error.
func MustParseClass(fqn string) Class {
	c, err := ParseClass(fqn)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the class as its fully qualified name.
func (c Class) String() string {
	return utils.JoinFQN(c.Pkg, c.Name)
}

// IsZero reports whether the class carries no identity.
func (c Class) IsZero() bool {
	return c.Pkg == "" && c.Name == ""
}
