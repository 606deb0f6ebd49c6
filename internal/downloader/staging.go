package downloader

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/google/uuid"
)

// Staging is the private directory of one chapter run. Two runs never share
// one, even for the same chapter ID. Live directories are tracked in
// util.Staged until Remove succeeds.
type Staging struct {
	Dir string
}

func NewStaging(root, chapterID string) (*Staging, error) {
	if root == "" {
		root = os.TempDir()
	}

	id := chapters.SanitizeName(chapterID)
	if id == "" {
		id = "unknown"
	}

	dir := filepath.Join(root, fmt.Sprintf("%s%s_%s%s", util.StagingPrefix, id, uuid.NewString()[:8], util.StagingSuffix))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewError(ErrorFilesystem, err, "create staging directory %s", dir)
	}
	util.Staged.Track(dir)

	return &Staging{Dir: dir}, nil
}

// PathFor is the staged location of a manifest entry. The zero-padded
// ordinal prefix keeps directory listings in manifest order.
func (s *Staging) PathFor(e ManifestEntry, width int) string {
	name := chapters.SanitizeName(path.Base(strings.ReplaceAll(e.Filename, "\\", "/")))
	if name == "" {
		name = "page"
	}

	return filepath.Join(s.Dir, fmt.Sprintf("%0*d_%s", width, e.Ordinal, name))
}

func (s *Staging) Remove() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return err
	}
	util.Staged.Release(s.Dir)
	return nil
}

// ordinalWidth is the prefix width for a manifest of n entries.
func ordinalWidth(n int) int {
	w := 4
	if n > 1 {
		if d := len(strconv.Itoa(n - 1)); d > w {
			w = d
		}
	}
	return w
}
