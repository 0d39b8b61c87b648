package fetcher_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abmishra1234/DVR-Feature-Livestream/fetcher"
	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
)

const masterBody = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",LANGUAGE="eng",NAME="English",URI="subs/eng/playlist_eng.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="broken, no language",URI="subs/xxx/playlist.m3u8"
#EXT-X-MEDIA:TYPE=CLOSED-CAPTIONS,GROUP-ID="cc",LANGUAGE="eng",INSTREAM-ID="CC1"
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,CODECS="avc1.640028,mp4a.40.2"
1080/playlist_1920x1080.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1000000
noresolution/playlist.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
720/playlist_1280x720.m3u8
`

func newMasterFetcher(url string) *fetcher.Fetcher {
	config := fetcher.NewConfig()
	config.SourceURL = url
	return fetcher.NewFetcher(config)
}

func TestFetchMaster(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/live/playlist.m3u8", r.URL.Path)
		w.Write([]byte(masterBody))
	}))
	defer origin.Close()

	master, err := newMasterFetcher(origin.URL + "/live/playlist.m3u8").FetchMaster()
	require.NoError(t, err)

	require.Len(t, master.Variants, 2, "stream-inf without RESOLUTION is skipped")
	assert.Equal(t, rtypes.StreamKey("1920x1080"), master.Variants[0].StreamKey)
	assert.Equal(t, origin.URL+"/live/1080/playlist_1920x1080.m3u8", master.Variants[0].URL)
	assert.Equal(t, rtypes.StreamKey("1280x720"), master.Variants[1].StreamKey)
	assert.Equal(t, origin.URL+"/live/720/playlist_1280x720.m3u8", master.Variants[1].URL)

	require.Len(t, master.Subtitles, 1, "subtitle media without LANGUAGE is skipped")
	assert.Equal(t, rtypes.StreamKey("eng"), master.Subtitles[0].Language)
	assert.Equal(t, origin.URL+"/live/subs/eng/playlist_eng.m3u8", master.Subtitles[0].URL)

	require.Len(t, master.ClosedCaptions, 1)
	assert.Equal(t, "CC1", master.ClosedCaptions[0]["INSTREAM-ID"])
	assert.Equal(t, "eng", master.ClosedCaptions[0]["LANGUAGE"])

	assert.Equal(t, []byte(masterBody), master.Raw)
}

func TestFetchMasterUpstreamError(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer origin.Close()

	_, err := newMasterFetcher(origin.URL + "/live/playlist.m3u8").FetchMaster()
	assert.Error(t, err)
}

func TestFetchMasterUnreachable(t *testing.T) {
	_, err := newMasterFetcher("http://127.0.0.1:1/playlist.m3u8").FetchMaster()
	assert.Error(t, err)
}
