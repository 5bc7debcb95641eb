package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Resource is a transient local copy of an exported document. It must be
// released once the document has been saved.
type Resource struct {
	fs   afero.Fs
	path string
	size int64

	once sync.Once
	err  error
}

// acquire writes data to a new temporary file on fs.
func acquire(fs afero.Fs, data []byte) (*Resource, error) {
	f, err := afero.TempFile(fs, "", "invoice-export-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "export: create temp file")
	}
	res := &Resource{fs: fs, path: f.Name(), size: int64(len(data))}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = res.Release()
		return nil, eris.Wrap(err, "export: write temp file")
	}
	if err := f.Close(); err != nil {
		_ = res.Release()
		return nil, eris.Wrap(err, "export: close temp file")
	}
	return res, nil
}

// Path is the resource's location on its filesystem.
func (r *Resource) Path() string { return r.path }

// Size is the document size in bytes.
func (r *Resource) Size() int64 { return r.size }

// Open opens the resource for reading.
func (r *Resource) Open() (afero.File, error) {
	f, err := r.fs.Open(r.path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open resource")
	}
	return f, nil
}

// Release removes the resource. It is safe to call more than once.
func (r *Resource) Release() error {
	r.once.Do(func() {
		if err := r.fs.Remove(r.path); err != nil && !os.IsNotExist(err) {
			r.err = eris.Wrap(err, "export: release resource")
		}
	})
	return r.err
}

// Saver hands a resource to the user under the given file name and returns
// where it ended up.
type Saver interface {
	Save(ctx context.Context, res *Resource, name string) (string, error)
}

// DirSaver saves resources into a directory.
type DirSaver struct {
	Fs  afero.Fs
	Dir string
}

// Save copies res to Dir/name, replacing any existing file. The copy is
// written beside the target and renamed into place.
func (d DirSaver) Save(ctx context.Context, res *Resource, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "export: save")
	}
	if name == "" || filepath.Base(name) != name {
		return "", eris.Errorf("export: invalid file name %q", name)
	}

	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := d.Fs.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create directory %s", dir)
	}

	src, err := res.Open()
	if err != nil {
		return "", err
	}
	defer src.Close() //nolint:errcheck

	dest := filepath.Join(dir, name)
	tmp := dest + ".part"
	out, err := d.Fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", eris.Wrapf(err, "export: create %s", tmp)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = d.Fs.Remove(tmp)
		return "", eris.Wrapf(err, "export: write %s", tmp)
	}
	if err := out.Close(); err != nil {
		_ = d.Fs.Remove(tmp)
		return "", eris.Wrapf(err, "export: close %s", tmp)
	}
	if err := d.Fs.Rename(tmp, dest); err != nil {
		_ = d.Fs.Remove(tmp)
		return "", eris.Wrapf(err, "export: rename to %s", dest)
	}
	return dest, nil
}
