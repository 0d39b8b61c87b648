package ingest

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/fetcher"
	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/vsync"
)

// Loop drives the ingest pipeline: one master manifest fetch at startup to
// discover the stream catalog, then strictly sequential rounds. Within a
// round every stream key gets one sync task on a bounded pool; round N+1
// never starts before round N has drained. Falling behind under slow
// origins is the accepted backpressure tradeoff.
type Loop struct {
	config     Config
	fetcher    *fetcher.Fetcher
	downloader *fetcher.Downloader
	storage    *sfs.Filesystem
	masterName string

	pool     *vsync.Semaphore
	inflight *vsync.CheckedMap

	stopOnce sync.Once
	stopc    chan struct{}
}

type stream struct {
	key rtypes.StreamKey
	url string
}

func NewLoop(config Config, f *fetcher.Fetcher, d *fetcher.Downloader, storage *sfs.Filesystem, masterName string) *Loop {
	workers := config.Workers
	if workers == 0 {
		workers = 1
	}
	return &Loop{
		config:     config,
		fetcher:    f,
		downloader: d,
		storage:    storage,
		masterName: masterName,
		pool:       vsync.NewSemaphore(workers, 1024),
		inflight:   vsync.NewCheckedMap(),
		stopc:      make(chan struct{}),
	}
}

// Run blocks until the configured run duration elapses or Stop is called.
func (l *Loop) Run() error {
	master := l.awaitMaster()
	if master == nil {
		return nil
	}

	if err := l.storage.StoreManifest("", l.masterName, master.Raw); err != nil {
		logrus.Errorf("cannot store master manifest: %+v", err)
	}

	streams := catalog(master)
	if len(streams) == 0 {
		return errors.New("master manifest declares no streams")
	}
	logrus.Infof("ingest catalog: %d streams", len(streams))

	var deadline time.Time
	if l.config.RunDuration.Duration > 0 {
		deadline = time.Now().Add(l.config.RunDuration.Duration)
	}

	for {
		l.runRound(streams)

		if !deadline.IsZero() && time.Now().After(deadline) {
			logrus.Info("ingest run duration reached")
			return nil
		}

		select {
		case <-l.stopc:
			return nil
		case <-time.After(l.config.PollInterval.Duration):
		}
	}
}

func (l *Loop) runRound(streams []stream) {
	var wg sync.WaitGroup
	for _, st := range streams {
		if !l.inflight.Lock(string(st.key), nil) {
			logrus.WithField("stream_key", st.key).Warn("previous sync still running, skipping")
			continue
		}
		l.pool.Lock()
		wg.Add(1)
		go func(st stream) {
			defer wg.Done()
			defer l.pool.Unlock()
			defer l.inflight.Unlock(string(st.key))

			n, err := l.downloader.SyncPlaylist(st.url, st.key)
			if err != nil {
				logrus.WithField("stream_key", st.key).Errorf("sync failed: %+v", err)
				return
			}
			if n > 0 {
				logrus.WithField("stream_key", st.key).Debugf("downloaded %d segments", n)
			}
		}(st)
	}
	wg.Wait()
}

// awaitMaster retries the startup master fetch until it succeeds or the
// loop is stopped.
func (l *Loop) awaitMaster() *fetcher.Master {
	for {
		master, err := l.fetcher.FetchMaster()
		if err == nil {
			return master
		}
		logrus.Errorf("cannot fetch master manifest, retrying: %+v", err)
		select {
		case <-l.stopc:
			return nil
		case <-time.After(l.config.PollInterval.Duration):
		}
	}
}

func catalog(master *fetcher.Master) []stream {
	streams := make([]stream, 0, len(master.Variants)+len(master.Subtitles))
	for _, v := range master.Variants {
		streams = append(streams, stream{key: v.StreamKey, url: v.URL})
	}
	for _, s := range master.Subtitles {
		streams = append(streams, stream{key: s.Language, url: s.URL})
	}
	return streams
}

// Stop halts new round scheduling; in-flight downloads drain on their own.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopc) })
}
