package assets

import (
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/diamondburned/smolblog/server/metrics"
	"github.com/diamondburned/smolblog/smolblog"
	"github.com/google/uuid"
	"github.com/peterbourgon/diskv"
	"github.com/pkg/errors"
)

// Store writes files into the upload directory. A Store is safe to use
// concurrently: every file gets a new random name, so writers never share a
// path.
type Store struct {
	cfg AssetConfig
	dv  *diskv.Diskv
	obs metrics.Observer
	tmp string
}

// NewStore creates a new store over the config's upload directory. The
// directory must already exist; see AssetConfig.Validate.
func NewStore(cfg AssetConfig, obs metrics.Observer) *Store {
	if obs == nil {
		obs = metrics.Nop
	}

	return &Store{
		cfg: cfg,
		obs: obs,
		tmp: filepath.Join(cfg.FileDirectory, TempDirName),
		dv: diskv.New(diskv.Options{
			BasePath: cfg.FileDirectory,
			// Keep a flat directory.
			Transform: func(string) []string { return nil },
			// Don't cache anything in memory; files are served from disk.
			CacheSizeMax: 0,
		}),
	}
}

// Config returns the store's config.
func (s *Store) Config() AssetConfig {
	return s.cfg
}

// Store writes everything read from r into a new file with the given extension
// and returns the stored asset. Write failures are of kind AssetWrite. Read
// failures are returned untagged so the caller can attribute them to its
// source.
func (s *Store) Store(r io.Reader, ext string) (smolblog.StoredAsset, error) {
	var name = NewName(ext)
	var src = countingReader{r: r}

	start := time.Now()
	err := s.write(name, &src)
	s.obs.RecordAssetWrite(time.Since(start), src.n, err)

	if err != nil {
		if src.err != nil {
			return smolblog.StoredAsset{}, errors.Wrap(src.err, "Failed to read file")
		}

		return smolblog.StoredAsset{}, smolblog.Wrapf(
			smolblog.AssetWrite, err, "Failed to save file %q", name,
		)
	}

	return smolblog.StoredAsset{
		Name: name,
		Size: src.n,
		Ref:  s.Ref(name),
	}, nil
}

// write streams r into a temporary file and moves it into place once it is
// complete and synced, so a file is either absent or whole. Only the move takes
// diskv's lock.
func (s *Store) write(name string, r io.Reader) error {
	f, err := ioutil.TempFile(s.tmp, "."+name)
	if err != nil {
		return errors.Wrap(err, "Failed to create temporary file")
	}

	// This is a no-op once the file is moved.
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrap(err, "Failed to write file")
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "Failed to sync file")
	}

	if err := f.Close(); err != nil {
		return errors.Wrap(err, "Failed to close file")
	}

	if err := s.dv.Import(f.Name(), name, true); err != nil {
		return errors.Wrap(err, "Failed to move file into place")
	}

	return nil
}

// Ref returns the reference to the file with the given name.
func (s *Store) Ref(name string) string {
	return path.Join(s.cfg.ServePath, name)
}

// Path returns the file path of the file with the given name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.cfg.FileDirectory, name)
}

// Has returns true if a file with the given name exists.
func (s *Store) Has(name string) bool {
	return s.dv.Has(name)
}

// Remove removes the file with the given name.
func (s *Store) Remove(name string) error {
	if err := s.dv.Erase(name); err != nil {
		return errors.Wrapf(err, "Failed to remove %q", name)
	}
	return nil
}

// NewName generates a new file name with the given extension. The name is a
// random version 4 UUID, so no existence check is needed.
func NewName(ext string) string {
	return uuid.New().String() + "." + ext
}

// ParseName returns true if name looks like a name generated by NewName.
func ParseName(name string) bool {
	i := strings.IndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return false
	}

	_, err := uuid.Parse(name[:i])
	return err == nil
}

// NameFromRef returns the file name part of a reference.
func NameFromRef(ref string) string {
	return path.Base(ref)
}

type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)

	if err != nil && err != io.EOF {
		c.err = err
	}

	return n, err
}

// modTime returns the modification time of the named file.
func (s *Store) modTime(name string) (time.Time, error) {
	st, err := os.Stat(s.Path(name))
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}
