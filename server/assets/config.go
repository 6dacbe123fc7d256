// Package assets stores uploaded and fetched files in the upload directory
// under unique generated names.
package assets

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
)

// TempDirName is the directory inside the upload directory that holds files
// while they are being written. It is never served.
const TempDirName = ".incoming"

type AssetConfig struct {
	FileDirectory string            `toml:"fileDirectory"`
	ServePath     string            `toml:"servePath"`
	MaxFileSize   datasize.ByteSize `toml:"maxFileSize"`
}

func NewConfig() AssetConfig {
	return AssetConfig{
		FileDirectory: "app/uploads",
		ServePath:     "/app/uploads",
		MaxFileSize:   10 * datasize.MB,
	}
}

// Validate validates the config and creates the upload directory if it does
// not exist yet. It is safe to call multiple times.
func (c *AssetConfig) Validate() error {
	if c.FileDirectory == "" {
		return errors.New("missing `fileDirectory' value")
	}

	if !strings.HasPrefix(c.ServePath, "/") {
		return fmt.Errorf("servePath %q must be absolute", c.ServePath)
	}
	c.ServePath = path.Clean(c.ServePath)

	s, err := os.Stat(c.FileDirectory)
	if err == nil {
		if !s.IsDir() {
			return fmt.Errorf("fileDirectory %q is not a directory", c.FileDirectory)
		}
	} else {
		if err := os.MkdirAll(c.FileDirectory, os.ModePerm|os.ModeDir); err != nil {
			return errors.Wrap(err, "Failed to create fileDirectory")
		}
	}

	tmp := filepath.Join(c.FileDirectory, TempDirName)
	if err := os.MkdirAll(tmp, os.ModePerm|os.ModeDir); err != nil {
		return errors.Wrap(err, "Failed to create temporary directory")
	}

	return nil
}
