package testutils

import (
	"path/filepath"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	. "github.com/onsi/gomega"
)

// TestFileSystem returns an empty memory backed file system.
func TestFileSystem() vfs.FileSystem {
	return memoryfs.New()
}

// FileSystemWith returns a memory backed file system populated with
// the given files. Missing directories are created on the fly.
func FileSystemWith(files map[string]string) vfs.FileSystem {
	fs := memoryfs.New()
	for path, data := range files {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			ExpectWithOffset(1, fs.MkdirAll(dir, 0o755)).To(Succeed())
		}
		ExpectWithOffset(1, vfs.WriteFile(fs, path, []byte(data), 0o644)).To(Succeed())
	}
	return fs
}
