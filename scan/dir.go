package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lcx/keel/log"
)

// manifest file suffixes recognized by the framework.
var manifestSuffixes = []string{".plugin.json", ".plugin.yaml", ".plugin.yml"}

// manifest file base names recognized inside a plugin directory.
var manifestNames = map[string]bool{
	"plugin.json": true,
	"plugin.yaml": true,
	"plugin.yml":  true,
}

// IsManifestName reports whether a file name looks like a plugin manifest.
func IsManifestName(name string) bool {
	base := filepath.Base(name)
	if manifestNames[base] {
		return true
	}
	for _, suffix := range manifestSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// DirSource walks a directory tree for manifest files. A missing root is not
// an error; it simply yields nothing, so default search paths can be
// configured unconditionally.
type DirSource struct {
	root string
}

// NewDirSource creates a directory source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) Name() string { return "dir:" + s.root }

// Root returns the directory root the source walks.
func (s *DirSource) Root() string { return s.root }

// Walk visits every manifest under the root. Individual unreadable files are
// logged and skipped; only a failure to traverse the root itself is reported
// as a source failure.
func (s *DirSource) Walk(visit VisitFunc) error {
	if _, err := os.Stat(s.root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return SourceFailure(err)
	}

	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("scan: unreadable entry skipped")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsManifestName(d.Name()) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("scan: open failed, skipped")
			return nil
		}
		defer f.Close()

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}
		return visit(filepath.ToSlash(rel), f)
	})
}
