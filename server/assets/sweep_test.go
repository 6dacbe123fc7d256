package assets

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"
)

func TestSweep(t *testing.T) {
	s := newTestStore(t)

	store := func(old bool) string {
		a, err := s.Store(strings.NewReader("data"), "png")
		if err != nil {
			t.Fatal("Failed to store:", err)
		}

		if old {
			then := time.Now().Add(-2 * time.Hour)
			if err := os.Chtimes(s.Path(a.Name), then, then); err != nil {
				t.Fatal("Failed to age file:", err)
			}
		}

		return a.Name
	}

	var (
		referenced = store(true)
		orphan     = store(true)
		fresh      = store(false)
	)

	// Files not named by the store are never touched.
	foreign := filepath.Join(s.Config().FileDirectory, "README")
	if err := ioutil.WriteFile(foreign, []byte("hi"), 0644); err != nil {
		t.Fatal("Failed to write foreign file:", err)
	}

	inflight := filepath.Join(s.Config().FileDirectory, TempDirName, "123456")
	if err := ioutil.WriteFile(inflight, []byte("hi"), 0644); err != nil {
		t.Fatal("Failed to write temporary file:", err)
	}

	opts := SweepOptions{
		Referenced: map[string]struct{}{referenced: {}},
		Before:     time.Now().Add(-time.Hour),
		DryRun:     true,
	}

	t.Run("DryRun", func(t *testing.T) {
		names, err := s.Sweep(opts)
		if err != nil {
			t.Fatal("Failed to sweep:", err)
		}

		if eq := deep.Equal(names, []string{orphan}); eq != nil {
			t.Fatal("Unexpected orphans:", eq)
		}

		if !s.Has(orphan) {
			t.Fatal("Dry run removed the orphan")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		opts := opts
		opts.DryRun = false

		names, err := s.Sweep(opts)
		if err != nil {
			t.Fatal("Failed to sweep:", err)
		}

		if eq := deep.Equal(names, []string{orphan}); eq != nil {
			t.Fatal("Unexpected removed files:", eq)
		}

		if s.Has(orphan) {
			t.Fatal("Orphan still exists")
		}

		for _, name := range []string{referenced, fresh} {
			if !s.Has(name) {
				t.Fatal("Kept file was removed:", name)
			}
		}

		for _, path := range []string{foreign, inflight} {
			if _, err := os.Stat(path); err != nil {
				t.Fatal("Foreign file was touched:", err)
			}
		}
	})
}
