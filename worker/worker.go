package worker

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/fetcher"
	"github.com/abmishra1234/DVR-Feature-Livestream/hls_server"
	"github.com/abmishra1234/DVR-Feature-Livestream/ingest"
	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
	"github.com/abmishra1234/DVR-Feature-Livestream/sweeper"
)

// pausePoint remembers where a client paused so resume can hand back the
// DVR slice starting there.
type pausePoint struct {
	StreamKey rtypes.StreamKey
	Date      string
	MS        int64
}

type Worker struct {
	Config Config

	index      *sindex.Index
	storage    *sfs.Filesystem
	fetcher    *fetcher.Fetcher
	downloader *fetcher.Downloader
	ingest     *ingest.Loop
	sweeper    *sweeper.Sweeper
	hlsServer  *hls_server.DvrHls

	pm     sync.Mutex
	pauses map[string]pausePoint
}

func NewWorker(config Config) (*Worker, error) {
	worker := Worker{
		Config: config,
		pauses: make(map[string]pausePoint),
	}

	worker.index = sindex.New(config.SindexConfig)

	storage, err := sfs.NewFilesystem(config.SfsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create file storage")
	}
	worker.storage = storage

	worker.fetcher = fetcher.NewFetcher(config.FetcherConfig)
	worker.downloader = fetcher.NewDownloader(config.FetcherConfig, storage, worker.index)
	worker.ingest = ingest.NewLoop(config.IngestConfig, worker.fetcher, worker.downloader,
		storage, config.FetcherConfig.MasterManifestName)
	worker.sweeper = sweeper.NewSweeper(config.SweeperConfig, storage, worker.index)

	hlsServer, err := hls_server.NewDvrHls(config.DvrHlsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create hls server")
	}

	hlsServer.HandleMasterPlaylist = worker.handleMasterPlaylist
	hlsServer.HandleLivePlaylist = worker.handleLivePlaylist
	hlsServer.HandleDvrPlaylist = worker.handleDvrPlaylist
	hlsServer.HandleSegment = worker.handleSegment
	hlsServer.HandleAddMetadata = worker.handleAddMetadata
	hlsServer.HandleRemoveMetadata = worker.handleRemoveMetadata
	hlsServer.HandleLiveWindow = worker.handleLiveWindow
	hlsServer.HandleDvrWindow = worker.handleDvrWindow
	hlsServer.HandlePause = worker.handlePause
	hlsServer.HandleResume = worker.handleResume

	worker.hlsServer = hlsServer

	return &worker, nil
}

func (w *Worker) Listen() error {
	if err := w.hlsServer.Listen(); err != nil {
		return errors.Wrap(err, "cannot listen hls")
	}
	return nil
}

func (w *Worker) Serve() error {
	go func() {
		if err := w.ingest.Run(); err != nil {
			logrus.Errorf("ingest stopped: %+v", err)
		}
	}()
	go w.sweeper.Run()

	go func() {
		if err := w.hlsServer.Serve(); err != nil {
			logrus.Panicf("cannot serve %+v", err)
		}
	}()
	return nil
}

func (w *Worker) Stop() error {
	w.ingest.Stop()
	w.sweeper.Stop()
	if err := w.hlsServer.Stop(); err != nil {
		logrus.Errorf("cannot stop %+v", err)
	}
	return nil
}

// Index exposes the segment manager for in-process collaborators and
// tests; the HTTP metadata endpoints wrap the same operations.
func (w *Worker) Index() *sindex.Index {
	return w.index
}

func (w *Worker) Storage() *sfs.Filesystem {
	return w.storage
}

func (w *Worker) handleMasterPlaylist(r *hls_server.MasterPlaylistRequest) (hls_server.HttpResponse, error) {
	b, err := w.storage.ReadManifest("", w.Config.FetcherConfig.MasterManifestName)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "no master manifest")
	}
	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     ioutil.NopCloser(bytes.NewReader(b)),
	}, nil
}

func (w *Worker) handleLivePlaylist(r *hls_server.LivePlaylistRequest) (hls_server.HttpResponse, error) {
	res, err := w.index.GetLive(rtypes.StreamKey(r.StreamKey), 0)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "empty_playlist")
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(len(res)))
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "cannot create playlist")
	}
	for _, i := range res {
		pl.Append(i.FileName, float64(i.Duration)/float64(time.Second), "")
	}
	pl.SeqNo = uint64(res[0].SeqId)

	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     ioutil.NopCloser(strings.NewReader(pl.String())),
	}, nil
}

func (w *Worker) handleDvrPlaylist(r *hls_server.DvrPlaylistRequest) (hls_server.HttpResponse, error) {
	ms, err := rtypes.ParseTimeOfDay(r.Timestamp)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Wrap(err, "bad params")
	}

	res := w.index.GetDvr(rtypes.StreamKey(r.StreamKey), r.Date, ms, r.MaxSegments)
	if len(res) == 0 {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.New("empty_playlist")
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(len(res)))
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "cannot create playlist")
	}
	pl.MediaType = m3u8.VOD
	for _, i := range res {
		pl.Append(i.FileName, float64(i.Duration)/float64(time.Second), "")
	}
	pl.SeqNo = uint64(res[0].SeqId)
	pl.Close()

	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     ioutil.NopCloser(strings.NewReader(pl.String())),
	}, nil
}

func (w *Worker) handleSegment(r *hls_server.SegmentRequest) (hls_server.HttpResponse, error) {
	name := rtypes.BuildSegmentName(rtypes.StreamKey(r.StreamKey), r.Timestamp, r.Seq, r.Ext)
	reader, err := w.storage.SegmentReader(rtypes.StreamKey(r.StreamKey), name)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "no such segment")
	}
	return hls_server.HttpResponse{
		HttpStatus: http.StatusOK,
		Reader:     reader,
	}, nil
}

func (w *Worker) handleAddMetadata(r *hls_server.AddMetadataRequest) (hls_server.HttpResponse, error) {
	sk := rtypes.StreamKey(r.StreamKey)
	if !sk.Valid() {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Errorf("bad stream key %q", r.StreamKey)
	}
	ms, err := rtypes.ParseTimeOfDay(r.StartTimestamp)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Wrap(err, "bad params")
	}

	fileName := r.FileName
	if fileName == "" {
		fileName = rtypes.BuildSegmentName(sk, rtypes.StampOf(ms), r.SequenceNumber, rtypes.TsExt)
	}

	w.index.Add(rtypes.SegmentInfo{
		StreamKey: sk,
		Start:     rtypes.TimeKey{Date: r.Date, MS: ms},
		SeqId:     r.SequenceNumber,
		Duration:  time.Duration(r.DurationSeconds * float64(time.Second)),
		FileName:  fileName,
	})
	return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
}

func (w *Worker) handleRemoveMetadata(r *hls_server.RemoveMetadataRequest) (hls_server.HttpResponse, error) {
	if !w.index.Remove(rtypes.StreamKey(r.StreamKey), r.SequenceNumber) {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Errorf("unknown segment seq=%d", r.SequenceNumber)
	}
	return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
}

func (w *Worker) handleLiveWindow(r *hls_server.LiveWindowRequest) (hls_server.HttpResponse, error) {
	res, err := w.index.GetLive(rtypes.StreamKey(r.StreamKey), 0)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Wrap(err, "empty_window")
	}
	return jsonResponse(http.StatusOK, toWindowEntries(res))
}

func (w *Worker) handleDvrWindow(r *hls_server.DvrWindowRequest) (hls_server.HttpResponse, error) {
	ms, err := rtypes.ParseTimeOfDay(r.Timestamp)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Wrap(err, "bad params")
	}
	res := w.index.GetDvr(rtypes.StreamKey(r.StreamKey), r.Date, ms, r.MaxSegments)
	return jsonResponse(http.StatusOK, toWindowEntries(res))
}

func (w *Worker) handlePause(r *hls_server.PauseRequest) (hls_server.HttpResponse, error) {
	sk := rtypes.StreamKey(r.StreamKey)
	if !sk.Valid() {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Errorf("bad stream key %q", r.StreamKey)
	}
	ms, err := rtypes.ParseTimeOfDay(r.Timestamp)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusBadRequest}, errors.Wrap(err, "bad params")
	}

	w.pm.Lock()
	w.pauses[r.ClientId] = pausePoint{StreamKey: sk, Date: r.Date, MS: ms}
	w.pm.Unlock()

	logrus.WithField("stream_key", sk).Infof("paused client %s at %s %s", r.ClientId, r.Date, r.Timestamp)
	return jsonResponse(http.StatusOK, map[string]string{"status": "paused"})
}

func (w *Worker) handleResume(r *hls_server.ResumeRequest) (hls_server.HttpResponse, error) {
	w.pm.Lock()
	point, ok := w.pauses[r.ClientId]
	if ok {
		delete(w.pauses, r.ClientId)
	}
	w.pm.Unlock()
	if !ok {
		return hls_server.HttpResponse{HttpStatus: http.StatusNotFound}, errors.Errorf("unknown client %q", r.ClientId)
	}

	res := w.index.GetDvr(point.StreamKey, point.Date, point.MS, r.MaxSegments)
	return jsonResponse(http.StatusOK, toWindowEntries(res))
}

type windowEntry struct {
	StreamKey       string  `json:"stream_key"`
	Date            string  `json:"date"`
	StartTimestamp  string  `json:"start_timestamp"`
	SequenceNumber  int64   `json:"sequence_number"`
	DurationSeconds float64 `json:"duration"`
	FileName        string  `json:"file_name"`
}

func toWindowEntries(res []rtypes.SegmentInfo) []windowEntry {
	out := make([]windowEntry, 0, len(res))
	for _, i := range res {
		out = append(out, windowEntry{
			StreamKey:       string(i.StreamKey),
			Date:            i.Start.Date,
			StartTimestamp:  rtypes.FormatTimeOfDay(i.Start.MS),
			SequenceNumber:  i.SeqId,
			DurationSeconds: float64(i.Duration) / float64(time.Second),
			FileName:        i.FileName,
		})
	}
	return out
}

func jsonResponse(status int, v interface{}) (hls_server.HttpResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return hls_server.HttpResponse{HttpStatus: http.StatusInternalServerError}, errors.Wrapf(err, "cannot encode %+v", v)
	}
	return hls_server.HttpResponse{
		HttpStatus: status,
		Reader:     ioutil.NopCloser(bytes.NewReader(b)),
	}, nil
}
