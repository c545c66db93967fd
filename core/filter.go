package core

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// RuntimeFilter is the declarative allow-list controlling which members of
// a runtime tarball end up in the bootstrap package. The rules are data so
// that variants (different suites, different field sets) are configuration,
// not code. Want is total: an unmatched path is "not wanted", never an
// error.
type RuntimeFilter struct {
	// Unconditional lists first path segments kept outright
	// (metadata, licenses, setup scripts).
	Unconditional []string

	// StripPrefix is a leading segment ignored before directory rules
	// apply, because libraries live under both lib/ and usr/lib/.
	StripPrefix string

	Libraries []LibraryDirRule
	Binaries  []BinaryDirRule

	// Subtrees are exact directory paths kept as whole entries.
	Subtrees [][]string

	logger logrus.FieldLogger
}

// LibraryDirRule keeps shared libraries under specific directories: a file
// is wanted when its name equals a soname, extends a soname with a dot
// suffix (libz.so.1 matches libz.so.1.2.11), or matches a glob pattern.
type LibraryDirRule struct {
	Reason   string
	Dirs     [][]string
	Sonames  []string
	Patterns []glob.Glob
}

// BinaryDirRule keeps helper binaries under one directory by exact name.
type BinaryDirRule struct {
	Reason string
	Dir    []string
	Names  []string
}

func (this *RuntimeFilter) Want(parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	path := strings.Join(parts, "/")

	if contains(this.Unconditional, parts[0]) {
		this.logger.Infof("[x] %s: metadata/scripts", path)
		return true
	}

	if this.StripPrefix != "" && parts[0] == this.StripPrefix {
		parts = parts[1:]
		if len(parts) == 0 {
			return false
		}
	}

	directory, base := parts[:len(parts)-1], parts[len(parts)-1]

	for _, rule := range this.Libraries {
		if !rule.matchesDir(directory) {
			continue
		}
		if rule.matchesName(base) {
			this.logger.Infof("[x] %s: %s", path, rule.Reason)
			return true
		}
	}

	for _, rule := range this.Binaries {
		if segmentsEqual(directory, rule.Dir) && contains(rule.Names, base) {
			this.logger.Infof("[x] %s: %s", path, rule.Reason)
			return true
		}
	}

	for _, subtree := range this.Subtrees {
		if segmentsEqual(parts, subtree) {
			this.logger.Infof("[x] %s: dependency directory", path)
			return true
		}
	}

	this.logger.Infof("[ ] %s", path)
	return false
}

func (this LibraryDirRule) matchesDir(directory []string) bool {
	for _, candidate := range this.Dirs {
		if segmentsEqual(directory, candidate) {
			return true
		}
	}
	return false
}

func (this LibraryDirRule) matchesName(name string) bool {
	for _, pattern := range this.Patterns {
		if pattern.Match(name) {
			return true
		}
	}
	for _, soname := range this.Sonames {
		if name == soname || strings.HasPrefix(name, soname+".") {
			return true
		}
	}
	return false
}

func segmentsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, straw := range haystack {
		if straw == needle {
			return true
		}
	}
	return false
}
