package repository

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harukit/echosync/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	chatDir  = "chat"
	voiceDir = "voice"

	dateLayout = "2006-01-02"
	timeLayout = "15-04-05"
)

// Archive persists history records to the date-sharded on-disk layout:
//
//	<root>/YYYY-MM-DD/chat/HH-MM-SS.json
//	<root>/YYYY-MM-DD/voice/HH-MM-SS.mp3
//
// Both paths derive from the record's own timestamp in UTC, never from
// sync wall-clock time, so re-running a sync does not move files. The
// metadata file is the commit signal: its presence means the record's
// fetch fully succeeded.
type Archive struct {
	root string
}

// NewArchive creates an archive writer rooted at root
func NewArchive(root string) *Archive {
	return &Archive{root: root}
}

// Root returns the archive root directory
func (x *Archive) Root() string {
	return x.root
}

// MetadataPath returns the metadata file path for a record timestamp
func (x *Archive) MetadataPath(t time.Time) string {
	t = t.UTC()
	return filepath.Join(x.root, t.Format(dateLayout), chatDir, t.Format(timeLayout)+".json")
}

// ArtifactPath returns the audio file path for a record timestamp
func (x *Archive) ArtifactPath(t time.Time) string {
	t = t.UTC()
	return filepath.Join(x.root, t.Format(dateLayout), voiceDir, t.Format(timeLayout)+".mp3")
}

// HasMetadata reports whether a metadata file exists for the timestamp
func (x *Archive) HasMetadata(t time.Time) bool {
	_, err := os.Stat(x.MetadataPath(t))
	return err == nil
}

// HasArtifact reports whether an audio file exists for the timestamp
func (x *Archive) HasArtifact(t time.Time) bool {
	_, err := os.Stat(x.ArtifactPath(t))
	return err == nil
}

// WriteMetadata persists the record's raw metadata. Idempotent: when a
// metadata file already exists for the timestamp the write is a no-op
// reporting success, which is what makes restart-after-crash produce
// no duplicates. Returns whether a new file was written.
func (x *Archive) WriteMetadata(item *model.HistoryItem) (bool, error) {
	path := x.MetadataPath(item.Time)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, item.Raw, "", "  "); err != nil {
		return false, goerr.Wrap(err, "failed to format metadata", goerr.V("id", item.ID))
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return false, goerr.Wrap(err, "failed to write metadata", goerr.V("path", path))
	}
	return true, nil
}

// WriteArtifact streams the audio payload to its derived path. The
// write is atomic: a crash mid-write never leaves a truncated file
// visible under the final name.
func (x *Archive) WriteArtifact(t time.Time, r io.Reader) error {
	path := x.ArtifactPath(t)
	err := writeStreamAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return goerr.Wrap(err, "failed to write artifact", goerr.V("path", path))
	}
	return nil
}

// CountItems walks the archive and returns the number of metadata and
// audio files. Used by local inspection only; the sync path never
// scans the tree.
func (x *Archive) CountItems() (metadata, artifacts int, err error) {
	err = filepath.WalkDir(x.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".json":
			if filepath.Base(filepath.Dir(path)) == chatDir {
				metadata++
			}
		case ".mp3":
			if filepath.Base(filepath.Dir(path)) == voiceDir {
				artifacts++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to walk archive", goerr.V("root", x.root))
	}
	return metadata, artifacts, nil
}
