package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ResourcePrefix marks a virtual, resource-embedded search-path entry.
const ResourcePrefix = ":/"

// searchPath looks a compiled chunk up along the installed path.
// Entries are consulted in order; the first hit wins.
func (i *Interp) searchPath(name string) ([]byte, error) {
	fname := name + ChunkExt
	for _, entry := range i.path {
		data, err := i.readEntry(entry, fname)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("runtime: path entry %q: %w", entry, err)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
}

func (i *Interp) readEntry(entry, fname string) ([]byte, error) {
	if strings.HasPrefix(entry, ResourcePrefix) {
		if i.resources == nil {
			return nil, fs.ErrNotExist
		}
		dir := strings.Trim(strings.TrimPrefix(entry, ResourcePrefix), "/")
		p := fname
		if dir != "" {
			p = path.Join(dir, fname)
		}
		return fs.ReadFile(i.resources, p)
	}
	return os.ReadFile(filepath.Join(entry, fname))
}
