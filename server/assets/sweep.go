package assets

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// SweepOptions controls Sweep.
type SweepOptions struct {
	// Referenced contains the names of all files that posts refer to.
	Referenced map[string]struct{}
	// Before is the cutoff time. Files modified at or after it are kept, since
	// their posts may not be committed yet.
	Before time.Time
	// DryRun lists the orphans without removing them.
	DryRun bool
}

// Sweep finds files that no post refers to and removes them, unless DryRun is
// set. It returns the sorted names of the orphans found.
//
// Orphans appear when a submission fails after its files were written. They
// are never removed inline; this is the only place that deletes them.
func (s *Store) Sweep(opts SweepOptions) ([]string, error) {
	var orphans []string

	cancel := make(chan struct{})
	defer close(cancel)

	for name := range s.dv.Keys(cancel) {
		// Skip files that we didn't generate, such as in-flight temporary
		// files.
		if !ParseName(name) {
			continue
		}

		if _, ok := opts.Referenced[name]; ok {
			continue
		}

		t, err := s.modTime(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, errors.Wrapf(err, "Failed to stat %q", name)
		}

		if !t.Before(opts.Before) {
			continue
		}

		orphans = append(orphans, name)
	}

	sort.Strings(orphans)

	if opts.DryRun || len(orphans) == 0 {
		return orphans, nil
	}

	var removed = make([]string, 0, len(orphans))
	var mutex sync.Mutex

	var errgp errgroup.Group
	errgp.SetLimit(8)

	for _, name := range orphans {
		name := name

		errgp.Go(func() error {
			if err := s.Remove(name); err != nil {
				return err
			}

			mutex.Lock()
			removed = append(removed, name)
			mutex.Unlock()

			return nil
		})
	}

	err := errgp.Wait()
	sort.Strings(removed)

	return removed, err
}
