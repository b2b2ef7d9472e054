package scan

import (
	"archive/zip"

	"github.com/lcx/keel/log"
)

// ArchiveSource reads manifest entries out of a zip archive. Entries are
// visited in archive order with one open handle at a time.
type ArchiveSource struct {
	path string
}

// NewArchiveSource creates a source over the archive at path.
func NewArchiveSource(path string) *ArchiveSource {
	return &ArchiveSource{path: path}
}

func (s *ArchiveSource) Name() string { return "archive:" + s.path }

// Walk visits every manifest entry in the archive. A corrupt or unreadable
// archive is reported as a source failure so the scanner can skip it.
func (s *ArchiveSource) Walk(visit VisitFunc) error {
	r, err := zip.OpenReader(s.path)
	if err != nil {
		return SourceFailure(err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsManifestName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			log.Warn().Str("archive", s.path).Str("entry", f.Name).Err(err).
				Msg("scan: archive entry unreadable, skipped")
			continue
		}
		visitErr := visit(f.Name, rc)
		_ = rc.Close()
		if visitErr != nil {
			return visitErr
		}
	}
	return nil
}
