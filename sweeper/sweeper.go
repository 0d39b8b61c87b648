package sweeper

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
)

// Sweeper bounds storage and index growth: every cycle it walks the
// storage tree and drops files older than the retention period, along
// with their index entries. File deletion and index removal are separate
// fallible steps; a failure in one never rolls back the other. An
// orphaned index entry just 404s on access until the next cycle.
type Sweeper struct {
	config Config
	fs     *sfs.Filesystem
	index  *sindex.Index

	exceptions map[string]bool

	stopOnce sync.Once
	stopc    chan struct{}
}

func NewSweeper(config Config, fs *sfs.Filesystem, index *sindex.Index) *Sweeper {
	exceptions := make(map[string]bool, len(config.Exceptions))
	for _, name := range config.Exceptions {
		exceptions[name] = true
	}
	return &Sweeper{
		config:     config,
		fs:         fs,
		index:      index,
		exceptions: exceptions,
		stopc:      make(chan struct{}),
	}
}

// Run sweeps on its own timer until Stop is called.
func (s *Sweeper) Run() {
	for {
		select {
		case <-s.stopc:
			return
		case <-time.After(s.config.Interval.Duration):
		}

		removed, err := s.Sweep(time.Now())
		if err != nil {
			logrus.Errorf("sweep failed: %+v", err)
			continue
		}
		if removed > 0 {
			logrus.Infof("sweep removed %d files", removed)
		}
	}
}

// Sweep runs one retention cycle and returns how many files it deleted.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	cutoff := now.Add(-s.config.RetentionPeriod.Duration)
	removed := 0

	err := s.fs.Walk(func(sk rtypes.StreamKey, name string, modTime time.Time) error {
		if s.exceptions[name] {
			return nil
		}
		if !modTime.Before(cutoff) {
			return nil
		}

		if err := s.fs.Delete(sk, name); err != nil {
			logrus.WithField("stream_key", sk).Errorf("cannot delete %s: %+v", name, err)
		} else {
			removed++
		}

		seq, err := rtypes.SequenceFromName(name)
		if err != nil {
			logrus.WithField("stream_key", sk).Debugf("no sequence number in %s, skipping index removal", name)
			return nil
		}
		s.index.Remove(sk, seq)
		return nil
	})
	return removed, err
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopc) })
}
