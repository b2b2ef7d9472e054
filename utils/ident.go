// Package utils provides identity parsing helpers shared across the Keel framework.
package utils

import (
	"fmt"
	"strings"
)

// SplitFQN splits a fully qualified class name into its package path and type name.
// The type name is everything after the last '.' that follows the last '/', so
// "example.com/cache/redis.Store" yields ("example.com/cache/redis", "Store").
func SplitFQN(fqn string) (pkg string, name string, _ error) {
	slash := strings.LastIndexByte(fqn, '/')
	dot := strings.LastIndexByte(fqn, '.')
	if dot <= slash || dot == len(fqn)-1 {
		return "", "", fmt.Errorf("fqn %q missing type name", fqn)
	}
	pkg = fqn[:dot]
	name = fqn[dot+1:]
	if pkg == "" {
		return "", "", fmt.Errorf("fqn %q missing package", fqn)
	}
	if !validIdent(name) {
		return "", "", fmt.Errorf("fqn %q has invalid type name %q", fqn, name)
	}
	return pkg, name, nil
}

// JoinFQN formats a package path and type name as a fully qualified class name.
func JoinFQN(pkg, name string) string {
	return pkg + "." + name
}

// SplitMethodRef parses a "Class#method" cross-class factory reference and
// returns the class part and method name. The class part may itself be a
// fully qualified name.
func SplitMethodRef(ref string) (class string, method string, _ error) {
	hash := strings.IndexByte(ref, '#')
	if hash < 0 {
		return "", "", fmt.Errorf("method ref %q missing '#'", ref)
	}
	class, method = ref[:hash], ref[hash+1:]
	if class == "" || method == "" {
		return "", "", fmt.Errorf("method ref %q missing class or method", ref)
	}
	if !validIdent(method) {
		return "", "", fmt.Errorf("method ref %q has invalid method name %q", ref, method)
	}
	return class, method, nil
}

// PackageWithin reports whether pkg is inside scope. With recursive false the
// packages must match exactly; with recursive true any sub-package of scope
// also matches.
func PackageWithin(pkg, scope string, recursive bool) bool {
	if pkg == scope {
		return true
	}
	if !recursive {
		return false
	}
	return strings.HasPrefix(pkg, scope+"/")
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
