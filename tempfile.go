package mri

import (
	"fmt"
	"os"
	"path/filepath"
)

// newTempFile creates a fresh scratch host file under the dataset's
// configured tmp directory, named "mri<pid>.<counter>" after the
// reference library's own naming convention. It is marked external so
// the allocator and repositioner never move it; once no chunk's actual
// placement references it, the repositioner's sweep destroys it
// (close + unlink).
func (ds *Dataset) newTempFile() (fileID, error) {
	ds.tmpCounter++
	path := filepath.Join(ds.tmpDir, fmt.Sprintf("mri%d.%d", os.Getpid(), ds.tmpCounter))
	id := fileID(len(ds.files.entries))
	ds.files.entries = append(ds.files.entries, &fileEntry{name: path, external: true})
	return id, nil
}
