package fetcher_test

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/abmishra1234/DVR-Feature-Livestream/fetcher"
	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
)

const variantBody = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-PROGRAM-DATE-TIME:2026-03-04T10:00:00.000Z
#EXTINF:10.000,
playlist_720p_100000__1.ts
#EXTINF:10.000,
playlist_720p_100010__2.ts
#EXTINF:4.000,
badname.ts
#EXTINF:10.000,
playlist_720p_100024__3.ts
`

type DownloaderTestsSuite struct {
	suite.Suite
	path       string
	storage    *sfs.Filesystem
	index      *sindex.Index
	downloader *fetcher.Downloader
	origin     *httptest.Server

	seq3Available int32
}

func (s *DownloaderTestsSuite) SetupTest() {
	path, err := ioutil.TempDir("", "downloader_test")
	if err != nil {
		panic("Cannot run test")
	}
	s.path = path

	sfsConfig := sfs.NewConfig()
	sfsConfig.Basedir = path
	s.storage, err = sfs.NewFilesystem(sfsConfig)
	if err != nil {
		panic("Cannot run test")
	}
	s.index = sindex.New(sindex.NewConfig())

	s.seq3Available = 0
	s.origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/720/playlist_720p.m3u8":
			w.Write([]byte(variantBody))
		case "/live/720/playlist_720p_100000__1.ts":
			w.Write([]byte("payload-1"))
		case "/live/720/playlist_720p_100010__2.ts":
			w.Write([]byte("payload-2"))
		case "/live/720/badname.ts":
			w.Write([]byte("never-fetched"))
		case "/live/720/playlist_720p_100024__3.ts":
			if atomic.LoadInt32(&s.seq3Available) == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("payload-3"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	s.downloader = fetcher.NewDownloader(fetcher.NewConfig(), s.storage, s.index)
}

func (s *DownloaderTestsSuite) TearDownTest() {
	s.origin.Close()
	if s.path != "" {
		os.RemoveAll(s.path)
	}
}

func (s *DownloaderTestsSuite) playlistURL() string {
	return s.origin.URL + "/live/720/playlist_720p.m3u8"
}

func (s *DownloaderTestsSuite) TestSyncPlaylist() {
	n, err := s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)
	// badname.ts has no parsable sequence number, seq 3 is still 404 upstream
	assert.Equal(s.T(), 2, n)
	assert.Equal(s.T(), 2, s.index.Len("720p"))

	si, err := s.index.GetBySequence("720p", 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), rtypes.TimeKey{Date: "2026-03-04", MS: 10 * 3600000}, si.Start)
	assert.Equal(s.T(), 10*time.Second, si.Duration)
	assert.Equal(s.T(), "playlist_720p_100000__1.ts", si.FileName)

	si, err = s.index.GetBySequence("720p", 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), rtypes.TimeKey{Date: "2026-03-04", MS: 10*3600000 + 10000}, si.Start,
		"running clock advances by the previous segment's duration")

	r, err := s.storage.SegmentReader("720p", "playlist_720p_100010__2.ts")
	require.NoError(s.T(), err)
	body, _ := ioutil.ReadAll(r)
	r.Close()
	assert.Equal(s.T(), []byte("payload-2"), body)
}

func (s *DownloaderTestsSuite) TestSyncPlaylistStoresManifestCopy() {
	_, err := s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)

	got, err := s.storage.ReadManifest("720p", "playlist_720p.m3u8")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []byte(variantBody), got)
}

func (s *DownloaderTestsSuite) TestSyncPlaylistDedupes() {
	n, err := s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, n)

	n, err = s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, n)
	assert.Equal(s.T(), 2, s.index.Len("720p"))
}

func (s *DownloaderTestsSuite) TestFailedSegmentRetriesNextRound() {
	n, err := s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, n)
	_, err = s.index.GetBySequence("720p", 3)
	assert.Equal(s.T(), sindex.ErrNotFound, err)

	atomic.StoreInt32(&s.seq3Available, 1)
	n, err = s.downloader.SyncPlaylist(s.playlistURL(), "720p")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n, "a failed segment is not marked seen")

	si, err := s.index.GetBySequence("720p", 3)
	require.NoError(s.T(), err)
	// 10s + 10s + 4s after the playlist's program date time
	assert.Equal(s.T(), rtypes.TimeKey{Date: "2026-03-04", MS: 10*3600000 + 24000}, si.Start)
}

func (s *DownloaderTestsSuite) TestSyncRejectsMasterPlaylist() {
	master := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterBody))
	}))
	defer master.Close()

	_, err := s.downloader.SyncPlaylist(master.URL+"/playlist.m3u8", "720p")
	assert.Error(s.T(), err)
}

func (s *DownloaderTestsSuite) TestSyncUnreachablePlaylist() {
	_, err := s.downloader.SyncPlaylist("http://127.0.0.1:1/playlist.m3u8", "720p")
	assert.Error(s.T(), err)
}

func TestDownloaderTestsSuite(t *testing.T) {
	suite.Run(t, &DownloaderTestsSuite{})
}
