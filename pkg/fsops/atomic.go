package fsops

import (
	"os"
	"path/filepath"

	"github.com/frjcomp/gofsh/pkg/protocol"
)

// AtomicFile is an upload in progress. Data goes to a temp file in the
// target's directory; Commit renames it over the target, Abort removes it.
type AtomicFile struct {
	tmp    *os.File
	target string
	done   bool
}

func createTemp(dir, target string) (*AtomicFile, error) {
	tmp, err := os.CreateTemp(dir, ".gofsh-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{tmp: tmp, target: target}, nil
}

// Write implements io.Writer.
func (f *AtomicFile) Write(p []byte) (int, error) {
	n, err := f.tmp.Write(p)
	if err != nil {
		return n, newError(protocol.CmdUl, filepath.Base(f.target), err)
	}
	return n, nil
}

// Commit makes the written content visible at the target path.
func (f *AtomicFile) Commit() error {
	if f.done {
		return nil
	}
	f.done = true
	tmpName := f.tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if err := f.tmp.Sync(); err != nil {
		_ = f.tmp.Close()
		return newError(protocol.CmdUl, filepath.Base(f.target), err)
	}
	if err := f.tmp.Close(); err != nil {
		return newError(protocol.CmdUl, filepath.Base(f.target), err)
	}
	// Ignore chmod errors on platforms that don't support it well.
	_ = os.Chmod(tmpName, 0o644)

	if err := os.Rename(tmpName, f.target); err != nil {
		return newError(protocol.CmdUl, filepath.Base(f.target), err)
	}
	ok = true
	return nil
}

// Abort discards the upload. It is safe to call after Commit.
func (f *AtomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	_ = f.tmp.Close()
	return os.Remove(f.tmp.Name())
}
