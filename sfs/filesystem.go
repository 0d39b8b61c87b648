package sfs

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
)

var isValidFileName = regexp.MustCompile(`^[[:alnum:]][[:alnum:]_.-]*$`).MatchString

// Filesystem stores segment and manifest files under one base directory,
// partitioned by stream key. Recently written segments are kept in a
// bounded byte cache so live chunk serving usually skips the disk read.
type Filesystem struct {
	config Config
	cache  *ccache.Cache
}

type cachedBytes []byte

func (cb cachedBytes) Size() int64 {
	return int64(len(cb))
}

func NewFilesystem(config Config) (*Filesystem, error) {
	config.Basedir = filepath.Clean(config.Basedir)
	if err := os.MkdirAll(config.Basedir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "cannot create base directory %s", config.Basedir)
	}

	return &Filesystem{
		config: config,
		cache:  ccache.New(ccache.Configure().MaxSize(config.MaxCacheSize).Buckets(64)),
	}, nil
}

func (fs *Filesystem) Basedir() string {
	return fs.config.Basedir
}

func (fs *Filesystem) segmentPath(sk rtypes.StreamKey, name string) (string, error) {
	if !sk.Valid() {
		return "", errors.Errorf("bad stream key %q", sk)
	}
	if !isValidFileName(name) {
		return "", errors.Errorf("bad file name %q", name)
	}
	return filepath.Join(fs.config.Basedir, string(sk), name), nil
}

func cacheKey(sk rtypes.StreamKey, name string) string {
	return string(sk) + "/" + name
}

// StoreSegment persists a downloaded segment body and primes the hot
// cache with it.
func (fs *Filesystem) StoreSegment(sk rtypes.StreamKey, name string, data []byte) error {
	fullname, err := fs.segmentPath(sk, name)
	if err != nil {
		return errors.Wrap(err, "cannot store segment")
	}
	if err := os.MkdirAll(filepath.Dir(fullname), os.ModePerm); err != nil {
		return errors.Wrapf(err, "cannot create directory for %s", fullname)
	}
	if err := ioutil.WriteFile(fullname, data, os.ModePerm); err != nil {
		return errors.Wrapf(err, "cannot write segment %s", fullname)
	}
	fs.cache.Set(cacheKey(sk, name), cachedBytes(data), fs.config.CacheTTL.Duration)
	logrus.WithField("stream_key", sk).Debugf("stored segment %s (%d bytes)", name, len(data))
	return nil
}

// SegmentReader serves segment bytes from the hot cache when possible,
// falling back to the file.
func (fs *Filesystem) SegmentReader(sk rtypes.StreamKey, name string) (io.ReadCloser, error) {
	fullname, err := fs.segmentPath(sk, name)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read segment")
	}

	if item := fs.cache.Get(cacheKey(sk, name)); item != nil && !item.Expired() {
		return ioutil.NopCloser(bytes.NewReader(item.Value().(cachedBytes))), nil
	}

	b, err := ioutil.ReadFile(fullname)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read segment %s", fullname)
	}
	return ioutil.NopCloser(bytes.NewReader(b)), nil
}

// StoreManifest writes a playlist file. An empty stream key targets the
// base directory (the master manifest lives there).
func (fs *Filesystem) StoreManifest(sk rtypes.StreamKey, name string, data []byte) error {
	if !isValidFileName(name) {
		return errors.Errorf("bad manifest name %q", name)
	}
	dir := fs.config.Basedir
	if sk != "" {
		if !sk.Valid() {
			return errors.Errorf("bad stream key %q", sk)
		}
		dir = filepath.Join(dir, string(sk))
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrapf(err, "cannot create directory %s", dir)
	}
	fullname := filepath.Join(dir, name)
	if err := ioutil.WriteFile(fullname, data, os.ModePerm); err != nil {
		return errors.Wrapf(err, "cannot write manifest %s", fullname)
	}
	return nil
}

func (fs *Filesystem) ReadManifest(sk rtypes.StreamKey, name string) ([]byte, error) {
	if !isValidFileName(name) {
		return nil, errors.Errorf("bad manifest name %q", name)
	}
	dir := fs.config.Basedir
	if sk != "" {
		if !sk.Valid() {
			return nil, errors.Errorf("bad stream key %q", sk)
		}
		dir = filepath.Join(dir, string(sk))
	}
	b, err := ioutil.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read manifest %s", name)
	}
	return b, nil
}

// Delete removes a segment file and its cache slot.
func (fs *Filesystem) Delete(sk rtypes.StreamKey, name string) error {
	fullname, err := fs.segmentPath(sk, name)
	if err != nil {
		return errors.Wrap(err, "cannot delete segment")
	}
	fs.cache.Delete(cacheKey(sk, name))
	if err := os.Remove(fullname); err != nil {
		return errors.Wrapf(err, "cannot delete segment %s", fullname)
	}
	return nil
}

// Walk visits every regular file in every stream-key directory. The
// callback's error is logged but does not stop the walk.
func (fs *Filesystem) Walk(fn func(sk rtypes.StreamKey, name string, modTime time.Time) error) error {
	dirs, err := ioutil.ReadDir(fs.config.Basedir)
	if err != nil {
		return errors.Wrapf(err, "cannot list base directory %s", fs.config.Basedir)
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		sk := rtypes.StreamKey(dir.Name())
		files, err := ioutil.ReadDir(filepath.Join(fs.config.Basedir, dir.Name()))
		if err != nil {
			logrus.WithField("stream_key", sk).Errorf("cannot list stream directory: %+v", err)
			continue
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := fn(sk, file.Name(), file.ModTime()); err != nil {
				logrus.WithField("stream_key", sk).Errorf("walk callback failed on %s: %+v", file.Name(), err)
			}
		}
	}
	return nil
}
