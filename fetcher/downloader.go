package fetcher

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
)

// Downloader pulls new segments from one variant or subtitle playlist and
// reports them to the segment index. Already-fetched segments are skipped
// by resolved URL; the dedupe set lives for the process lifetime.
type Downloader struct {
	config  Config
	client  *http.Client
	storage *sfs.Filesystem
	index   *sindex.Index

	m          sync.Mutex
	downloaded map[string]bool
}

func NewDownloader(config Config, storage *sfs.Filesystem, index *sindex.Index) *Downloader {
	return &Downloader{
		config:     config,
		client:     &http.Client{Timeout: config.SegmentTimeout.Duration},
		storage:    storage,
		index:      index,
		downloaded: make(map[string]bool),
	}
}

// SyncPlaylist downloads the playlist at playlistURL, fetches every
// segment not yet seen, persists it and indexes its metadata. Individual
// segment failures are logged and skipped; they do not abort the batch.
// The downloaded count is returned.
func (d *Downloader) SyncPlaylist(playlistURL string, sk rtypes.StreamKey) (int, error) {
	body, err := d.fetch(playlistURL)
	if err != nil {
		return 0, errors.Wrap(err, "cannot fetch playlist")
	}

	manifestName := "playlist_" + string(sk) + ".m3u8"
	if err := d.storage.StoreManifest(sk, manifestName, body); err != nil {
		logrus.WithField("stream_key", sk).Errorf("cannot store playlist copy: %+v", err)
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse playlist %s", playlistURL)
	}
	if listType != m3u8.MEDIA {
		return 0, errors.Errorf("playlist %s is not a media playlist", playlistURL)
	}
	media := pl.(*m3u8.MediaPlaylist)

	// The running clock starts at EXT-X-PROGRAM-DATE-TIME when the
	// playlist carries one, else at wall-clock now, and then advances by
	// each segment's duration. It is the sole source of per-segment
	// timestamps and is never reset within the walk.
	clock := programDateTime(media)
	if clock.IsZero() {
		clock = time.Now()
	}
	count := 0
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		start := clock
		segDuration := time.Duration(seg.Duration * float64(time.Second))
		clock = clock.Add(segDuration)

		segURL := resolveURL(playlistURL, seg.URI)
		name := segmentBaseName(segURL)
		seq, err := rtypes.SequenceFromName(name)
		if err != nil {
			logrus.WithField("stream_key", sk).Warnf("cannot parse sequence number: %+v", err)
			continue
		}
		if d.seen(segURL) {
			continue
		}

		data, err := d.fetch(segURL)
		if err != nil {
			logrus.WithField("stream_key", sk).Errorf("cannot download segment seq=%d: %+v", seq, err)
			continue
		}
		if err := d.storage.StoreSegment(sk, name, data); err != nil {
			logrus.WithField("stream_key", sk).Errorf("cannot persist segment seq=%d: %+v", seq, err)
			continue
		}
		d.markSeen(segURL)

		d.index.Add(rtypes.SegmentInfo{
			StreamKey: sk,
			Start:     rtypes.TimeKeyOf(start),
			SeqId:     seq,
			Duration:  segDuration,
			FileName:  name,
		})
		count++
	}
	return count, nil
}

func (d *Downloader) fetch(u string) ([]byte, error) {
	resp, err := d.client.Get(u)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot fetch %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read body of %s", u)
	}
	return b, nil
}

func (d *Downloader) seen(u string) bool {
	d.m.Lock()
	defer d.m.Unlock()
	return d.downloaded[u]
}

func (d *Downloader) markSeen(u string) {
	d.m.Lock()
	defer d.m.Unlock()
	d.downloaded[u] = true
}

// programDateTime returns the first EXT-X-PROGRAM-DATE-TIME carried by the
// playlist, or the zero time.
func programDateTime(media *m3u8.MediaPlaylist) time.Time {
	for _, seg := range media.Segments {
		if seg != nil && !seg.ProgramDateTime.IsZero() {
			return seg.ProgramDateTime
		}
	}
	return time.Time{}
}

func segmentBaseName(segURL string) string {
	if u, err := url.Parse(segURL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(segURL)
}
