package hls_server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/vsync"
)

func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Debugf("req: %+v, vars: %+v", r.RequestURI, mux.Vars(r))
		next.ServeHTTP(w, r)
	})
}

type HttpResponse struct {
	HttpStatus int
	Reader     io.ReadCloser
}

// bodyParser is implemented by requests that carry a JSON body instead of
// path variables.
type bodyParser interface {
	ParseBody(io.Reader) error
}

// DvrHls routes player and metadata traffic to handler functions assigned
// by the worker. Each endpoint class sits behind its own admission
// semaphore; a caller that cannot get a slot in time is shed with 408.
type DvrHls struct {
	httpServer *http.Server
	httpRouter *mux.Router

	config DvrHlsConfig

	HandleMasterPlaylist func(*MasterPlaylistRequest) (HttpResponse, error)
	HandleLivePlaylist   func(*LivePlaylistRequest) (HttpResponse, error)
	HandleDvrPlaylist    func(*DvrPlaylistRequest) (HttpResponse, error)
	HandleSegment        func(*SegmentRequest) (HttpResponse, error)
	HandleAddMetadata    func(*AddMetadataRequest) (HttpResponse, error)
	HandleRemoveMetadata func(*RemoveMetadataRequest) (HttpResponse, error)
	HandleLiveWindow     func(*LiveWindowRequest) (HttpResponse, error)
	HandleDvrWindow      func(*DvrWindowRequest) (HttpResponse, error)
	HandlePause          func(*PauseRequest) (HttpResponse, error)
	HandleResume         func(*ResumeRequest) (HttpResponse, error)

	playlistMutex *vsync.Semaphore
	segmentMutex  *vsync.Semaphore
	dvrMutex      *vsync.Semaphore
	metadataMutex *vsync.Semaphore
}

func parseRequest(req interface{}, r *http.Request) error {
	vars := mux.Vars(r)
	if err := mapstructure.WeakDecode(vars, req); err != nil {
		return errors.Wrapf(err, "error parsing %+v, on %+v", req, vars)
	}
	if bp, ok := req.(bodyParser); ok {
		if err := bp.ParseBody(r.Body); err != nil {
			return err
		}
	}
	logrus.Debugf("request parse %+v", req)
	return nil
}

func (dhls *DvrHls) handleReqTyped(req interface{}) (HttpResponse, error) {
	switch v := req.(type) {
	case *MasterPlaylistRequest:
		return func() (HttpResponse, error) {
			if !dhls.playlistMutex.TryLock(time.Second * 10) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.playlistMutex.Unlock()

			return dhls.HandleMasterPlaylist(req.(*MasterPlaylistRequest))
		}()
	case *LivePlaylistRequest:
		return func() (HttpResponse, error) {
			if !dhls.playlistMutex.TryLock(time.Second * 10) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.playlistMutex.Unlock()

			return dhls.HandleLivePlaylist(req.(*LivePlaylistRequest))
		}()
	case *DvrPlaylistRequest:
		return func() (HttpResponse, error) {
			if !dhls.dvrMutex.TryLock(time.Second * 10) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.dvrMutex.Unlock()

			return dhls.HandleDvrPlaylist(req.(*DvrPlaylistRequest))
		}()
	case *SegmentRequest:
		return func() (HttpResponse, error) {
			if !dhls.segmentMutex.TryLock(time.Second * 10) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.segmentMutex.Unlock()

			return dhls.HandleSegment(req.(*SegmentRequest))
		}()
	case *AddMetadataRequest:
		return func() (HttpResponse, error) {
			if !dhls.metadataMutex.TryLock(time.Second * 5) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.metadataMutex.Unlock()

			return dhls.HandleAddMetadata(req.(*AddMetadataRequest))
		}()
	case *RemoveMetadataRequest:
		return func() (HttpResponse, error) {
			if !dhls.metadataMutex.TryLock(time.Second * 5) {
				return HttpResponse{HttpStatus: http.StatusRequestTimeout}, errors.New("timeout")
			}
			defer dhls.metadataMutex.Unlock()

			return dhls.HandleRemoveMetadata(req.(*RemoveMetadataRequest))
		}()
	case *LiveWindowRequest:
		return dhls.HandleLiveWindow(req.(*LiveWindowRequest))
	case *DvrWindowRequest:
		return dhls.HandleDvrWindow(req.(*DvrWindowRequest))
	case *PauseRequest:
		return dhls.HandlePause(req.(*PauseRequest))
	case *ResumeRequest:
		return dhls.HandleResume(req.(*ResumeRequest))
	default:
		return HttpResponse{
			HttpStatus: http.StatusInternalServerError,
			Reader:     nil,
		}, errors.Errorf("unknown type %+v", v)
	}
}

func (dhls *DvrHls) handleReq(req interface{}, w http.ResponseWriter, r *http.Request) error {
	methodName := reflect.TypeOf(req).String()

	err := parseRequest(req, r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		logrus.Warnf("%s: bad request: %+v", methodName, err)
		return err
	}

	res, err := dhls.handleReqTyped(req)

	if err != nil && res.HttpStatus == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return err
	} else if err != nil && res.HttpStatus != 0 {
		w.WriteHeader(res.HttpStatus)
		return err
	}

	w.WriteHeader(res.HttpStatus)
	if res.Reader != nil {
		defer res.Reader.Close()
		_, err = io.Copy(w, res.Reader)
	}
	if err != nil {
		logrus.Errorf("%s: bad response %+v", methodName, res)
		return err
	}

	return nil
}

func NewDvrHls(config DvrHlsConfig) (*DvrHls, error) {
	httpRouter := mux.NewRouter()
	httpRouter.Use(LogHandler)

	dhls := &DvrHls{
		config:        config,
		httpRouter:    httpRouter,
		playlistMutex: vsync.NewSemaphore(50, 300),
		segmentMutex:  vsync.NewSemaphore(20, 300),
		dvrMutex:      vsync.NewSemaphore(2, 20),
		metadataMutex: vsync.NewSemaphore(4, 40),
	}

	masterPlaylistHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &MasterPlaylistRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		dhls.handleReq(req, w, r)
	}

	livePlaylistHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &LivePlaylistRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		dhls.handleReq(req, w, r)
	}

	dvrPlaylistHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &DvrPlaylistRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		dhls.handleReq(req, w, r)
	}

	segmentHandler := func(w http.ResponseWriter, r *http.Request) {
		req := &SegmentRequest{}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if mux.Vars(r)["ext"] == "vtt" {
			w.Header().Set("Content-Type", "text/vtt")
		} else {
			w.Header().Set("Content-Type", "video/m2ts")
		}
		dhls.handleReq(req, w, r)
	}

	jsonHandler := func(newReq func() interface{}) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Content-Type", "application/json")
			dhls.handleReq(newReq(), w, r)
		}
	}

	httpRouter.HandleFunc(config.MasterPlaylist, masterPlaylistHandler).Methods("GET").Name("MasterPlaylist")
	httpRouter.HandleFunc(config.Segment, segmentHandler).Methods("GET").Name("Segment")
	httpRouter.HandleFunc(config.LivePlaylist, livePlaylistHandler).Methods("GET").Name("LivePlaylist")

	httpRouter.Path(config.DvrPlaylist).Methods("GET").
		Queries("date", "{date}", "timestamp", "{timestamp}", "max_segments", "{max_segments:[0-9]+}").
		Name("DvrPlaylist").HandlerFunc(dvrPlaylistHandler)
	httpRouter.Path(config.DvrPlaylist).Methods("GET").
		Queries("date", "{date}", "timestamp", "{timestamp}").
		Name("DvrPlaylist").HandlerFunc(dvrPlaylistHandler)

	httpRouter.HandleFunc(config.AddMetadata, jsonHandler(func() interface{} { return &AddMetadataRequest{} })).
		Methods("POST").Name("AddMetadata")
	httpRouter.HandleFunc(config.RemoveMetadata, jsonHandler(func() interface{} { return &RemoveMetadataRequest{} })).
		Methods("DELETE").Name("RemoveMetadata")

	httpRouter.HandleFunc(config.LiveWindow, jsonHandler(func() interface{} { return &LiveWindowRequest{} })).
		Methods("GET").Name("LiveWindow")
	httpRouter.Path(config.DvrWindow).Methods("GET").
		Queries("date", "{date}", "timestamp", "{timestamp}", "max_segments", "{max_segments:[0-9]+}").
		Name("DvrWindow").HandlerFunc(jsonHandler(func() interface{} { return &DvrWindowRequest{} }))
	httpRouter.Path(config.DvrWindow).Methods("GET").
		Queries("date", "{date}", "timestamp", "{timestamp}").
		Name("DvrWindow").HandlerFunc(jsonHandler(func() interface{} { return &DvrWindowRequest{} }))

	httpRouter.Path(config.Pause).Methods("POST").
		Queries("client_id", "{client_id}", "stream_key", "{stream_key:[0-9a-zA-Z-]+}", "date", "{date}", "timestamp", "{timestamp}").
		Name("Pause").HandlerFunc(jsonHandler(func() interface{} { return &PauseRequest{} }))
	httpRouter.Path(config.Resume).Methods("POST").
		Queries("client_id", "{client_id}", "max_segments", "{max_segments:[0-9]+}").
		Name("Resume").HandlerFunc(jsonHandler(func() interface{} { return &ResumeRequest{} }))
	httpRouter.Path(config.Resume).Methods("POST").
		Queries("client_id", "{client_id}").
		Name("Resume").HandlerFunc(jsonHandler(func() interface{} { return &ResumeRequest{} }))

	pprofr := httpRouter.PathPrefix("/debug/pprof").Subrouter()
	pprofr.HandleFunc("/", pprof.Index)
	pprofr.HandleFunc("/cmdline", pprof.Cmdline)
	pprofr.HandleFunc("/symbol", pprof.Symbol)
	pprofr.HandleFunc("/trace", pprof.Trace)

	profile := pprofr.PathPrefix("/profile").Subrouter()
	profile.HandleFunc("", pprof.Profile)
	profile.Handle("/goroutine", pprof.Handler("goroutine"))
	profile.Handle("/heap", pprof.Handler("heap"))
	profile.Handle("/block", pprof.Handler("block"))
	profile.Handle("/mutex", pprof.Handler("mutex"))

	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !dhls.playlistMutex.TryLock(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("playlistMutex"))
			return
		}
		dhls.playlistMutex.Unlock()

		if !dhls.segmentMutex.TryLock(4 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("segmentMutex"))
			return
		}
		dhls.segmentMutex.Unlock()

		if !dhls.dvrMutex.TryLock(10 * time.Second) {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("dvrMutex"))
			return
		}
		dhls.dvrMutex.Unlock()

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ok"))
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", dhls.config.HttpHost, dhls.config.HttpPort),
		Handler:      httpRouter,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 30,
		IdleTimeout:  time.Second * 30,
	}

	dhls.httpServer = httpServer
	return dhls, nil
}

func (dhls *DvrHls) Listen() error {
	go func() {
		err := dhls.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Panicf("cannot listen and serve http %+v", err)
		}
	}()
	return nil
}

func (dhls *DvrHls) Serve() error {
	return nil
}

func (dhls *DvrHls) Stop() error {
	return dhls.httpServer.Close()
}
