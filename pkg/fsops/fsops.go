// Package fsops executes the gofsh commands against the host filesystem,
// confined to a single root directory. Every operation returns an *Error
// carrying a wire error kind instead of panicking or exiting.
package fsops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/frjcomp/gofsh/pkg/protocol"
)

// Root is the directory tree exposed to clients. All paths handed to and
// returned from a Root are absolute host paths inside it.
type Root struct {
	path string
}

// NewRoot returns a Root for dir. dir must exist and be a directory; it is
// made absolute and has its symlinks resolved.
func NewRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", dir, err)
	}
	fi, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("root %s: %w", dir, ErrNotDir)
	}
	return &Root{path: real}, nil
}

// Path returns the absolute root directory.
func (r *Root) Path() string {
	return r.path
}

// within checks lexically that p is the root or below it.
func (r *Root) within(p string) error {
	rel, err := filepath.Rel(r.path, p)
	if err != nil {
		return ErrOutsideRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrOutsideRoot
	}
	return nil
}

// withinReal resolves symlinks on the deepest existing ancestor of p and
// checks the result is still inside the root.
func (r *Root) withinReal(p string) error {
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return r.within(real)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil
		}
		cur = parent
	}
}

// Resolve turns a client-supplied name into a host path. Relative names are
// joined to cwd; absolute names are taken as host paths. The result must
// stay inside the root.
func (r *Root) Resolve(cwd, name string) (string, error) {
	p, err := r.join(cwd, name)
	if err != nil {
		return "", err
	}
	if err := r.withinReal(p); err != nil {
		return "", err
	}
	return p, nil
}

// resolveEntry is Resolve without following a symlink in the last element,
// for operations that act on the directory entry itself.
func (r *Root) resolveEntry(cwd, name string) (string, error) {
	p, err := r.join(cwd, name)
	if err != nil {
		return "", err
	}
	if p == r.path {
		return p, nil
	}
	if err := r.withinReal(filepath.Dir(p)); err != nil {
		return "", err
	}
	return p, nil
}

// join builds the cleaned host path for name and checks it lexically.
func (r *Root) join(cwd, name string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	p = filepath.Clean(p)
	if err := r.within(p); err != nil {
		return "", err
	}
	return p, nil
}

// contains reports whether p is dir or lies below it.
func contains(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ChangeDir returns the directory name refers to relative to cwd. ".."
// is the parent of cwd; leaving the root fails with ErrOutsideRoot.
func (r *Root) ChangeDir(cwd, name string) (string, error) {
	p, err := r.Resolve(cwd, name)
	if err != nil {
		return cwd, newError(protocol.CmdCd, name, err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return cwd, newError(protocol.CmdCd, name, err)
	}
	if !fi.IsDir() {
		return cwd, newError(protocol.CmdCd, name, ErrNotDir)
	}
	return p, nil
}

// MakeDir creates the subdirectory name of cwd.
func (r *Root) MakeDir(cwd, name string) error {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return newError(protocol.CmdMkdir, name, ErrInvalidName)
	}
	p, err := r.Resolve(cwd, name)
	if err != nil {
		return newError(protocol.CmdMkdir, name, err)
	}
	if err := os.Mkdir(p, 0o755); err != nil {
		return newError(protocol.CmdMkdir, name, err)
	}
	return nil
}

// Remove deletes the file name, or the directory name and everything in it.
// A symlink is removed itself, never its target. The root, cwd and the
// parents of cwd cannot be removed.
func (r *Root) Remove(cwd, name string) error {
	p, err := r.resolveEntry(cwd, name)
	if err != nil {
		return newError(protocol.CmdRm, name, err)
	}
	if contains(p, cwd) || p == r.path {
		return newError(protocol.CmdRm, name, ErrBusy)
	}
	fi, err := os.Lstat(p)
	if err != nil {
		return newError(protocol.CmdRm, name, err)
	}
	if fi.IsDir() {
		err = os.RemoveAll(p)
	} else {
		err = os.Remove(p)
	}
	if err != nil {
		return newError(protocol.CmdRm, name, err)
	}
	return nil
}

// Move moves name to dest, both relative to cwd. When dest is an existing
// directory name is moved into it under its own base name; otherwise name is
// renamed to dest. Existing non-directory destinations are not overwritten.
// It returns the new host path.
func (r *Root) Move(cwd, name, dest string) (string, error) {
	src, err := r.resolveEntry(cwd, name)
	if err != nil {
		return "", newError(protocol.CmdMv, name, err)
	}
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return "", newError(protocol.CmdMv, name, err)
	}
	if src == r.path || contains(src, cwd) {
		return "", newError(protocol.CmdMv, name, ErrBusy)
	}

	dst, err := r.Resolve(cwd, dest)
	if err != nil {
		return "", newError(protocol.CmdMv, dest, err)
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if dst == src {
		return dst, nil
	}
	if srcInfo.IsDir() && contains(src, dst) {
		return "", newError(protocol.CmdMv, dest, ErrInvalidName)
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", newError(protocol.CmdMv, dest, fs.ErrExist)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", newError(protocol.CmdMv, name, err)
	}
	return dst, nil
}

// Size returns the byte size of the file name.
func (r *Root) Size(cwd, name string) (int64, error) {
	p, err := r.Resolve(cwd, name)
	if err != nil {
		return 0, newError(protocol.CmdInfo, name, err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return 0, newError(protocol.CmdInfo, name, err)
	}
	if fi.IsDir() {
		return 0, newError(protocol.CmdInfo, name, ErrIsDir)
	}
	return fi.Size(), nil
}

// Open opens the file name for a download and returns it with its size.
func (r *Root) Open(cwd, name string) (*os.File, int64, error) {
	p, err := r.Resolve(cwd, name)
	if err != nil {
		return nil, 0, newError(protocol.CmdDl, name, err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, newError(protocol.CmdDl, name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, newError(protocol.CmdDl, name, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, 0, newError(protocol.CmdDl, name, ErrIsDir)
	}
	return f, fi.Size(), nil
}

// Create prepares an upload of size bytes to name. The content is written to
// a temporary file next to the target and only replaces it on Commit.
func (r *Root) Create(cwd, name string, size int64) (*AtomicFile, error) {
	p, err := r.Resolve(cwd, name)
	if err != nil {
		return nil, newError(protocol.CmdUl, name, err)
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return nil, newError(protocol.CmdUl, name, ErrIsDir)
	}
	dir := filepath.Dir(p)
	if free, err := FreeSpace(dir); err == nil && size > 0 && uint64(size) > free {
		return nil, newError(protocol.CmdUl, name, ErrNoSpace)
	}
	f, err := createTemp(dir, p)
	if err != nil {
		return nil, newError(protocol.CmdUl, name, err)
	}
	return f, nil
}

// List returns the immediate subdirectories and files of dir, sorted by name.
// Symlinks are classified by their target; anything else is skipped.
func (r *Root) List(dir string) (protocol.Listing, error) {
	l := protocol.Listing{Dir: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return l, newError("list", filepath.Base(dir), err)
	}
	for _, e := range entries {
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			fi, err := os.Stat(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			mode = fi.Mode().Type()
		}
		switch {
		case mode.IsDir():
			l.Dirs = append(l.Dirs, e.Name())
		case mode.IsRegular():
			l.Files = append(l.Files, e.Name())
		}
	}
	return l, nil
}
