package ramdisk

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-dmgcore/internal/dmgimage"
)

// FileLoader implements dmgimage.FileLoader: it populates a freshly
// allocated region with the contents of a file opened through an afero.Fs,
// a testable filesystem abstraction rather than calling os directly. This is
// the concrete implementation of the helper spec.md §4.6 calls "load from an
// opened file handle": explicitly a collaborator the core only consumes,
// never implements itself.
type FileLoader struct {
	Fs   afero.Fs
	Path string
}

// NewFileLoader returns a loader reading Path through fs.
func NewFileLoader(fs afero.Fs, path string) FileLoader {
	return FileLoader{Fs: fs, Path: path}
}

// Load implements dmgimage.FileLoader.
func (l FileLoader) Load(allocator dmgimage.Allocator, size uint64) (dmgimage.Region, error) {
	f, err := l.Fs.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("ramdisk: opening %s: %w", l.Path, err)
	}
	defer f.Close()

	region, err := allocator.Allocate(size)
	if err != nil {
		return nil, fmt.Errorf("ramdisk: allocating region: %w", err)
	}

	table, ok := region.(*ExtentTable)
	if !ok {
		return nil, fmt.Errorf("ramdisk: allocator did not return an *ExtentTable")
	}

	buf := make([]byte, defaultExtentSize)
	var pos uint64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if writeErr := table.WriteAt(pos, buf[:n]); writeErr != nil {
				_ = table.Close()
				return nil, fmt.Errorf("ramdisk: loading file into region: %w", writeErr)
			}
			pos += uint64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = table.Close()
			return nil, fmt.Errorf("ramdisk: reading %s: %w", l.Path, readErr)
		}
	}

	if pos != size {
		_ = table.Close()
		return nil, fmt.Errorf("ramdisk: loaded %d bytes, expected %d", pos, size)
	}

	return table, nil
}

// FileSize stats path through fs, the way spec.md §6's file_size collaborator
// is consumed by NewContextFromFile's caller.
func FileSize(fs afero.Fs, path string) (uint64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("ramdisk: stat %s: %w", path, err)
	}
	if info.Size() < 0 {
		return 0, fmt.Errorf("ramdisk: negative file size for %s", path)
	}
	return uint64(info.Size()), nil
}
