package sindex

import (
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
)

var (
	ErrNotFound = errors.New("segment not found")
	// ErrNotEnoughSegments is returned by GetLive until a stream has
	// accumulated a full live window.
	ErrNotEnoughSegments = errors.New("not enough segments")
)

// Index is the segment manager: per stream key it keeps two views over the
// same set of segments, a btree ordered by (date, start time) and a hash
// map by sequence number. Both views are mutated under one partition lock,
// so no reader ever observes a segment present in one view and absent from
// the other.
type Index struct {
	config Config

	m     sync.RWMutex
	parts map[rtypes.StreamKey]*partition
}

type partition struct {
	m      sync.Mutex
	byTime *btree.BTree
	bySeq  map[int64]*entry
}

type entry struct {
	info rtypes.SegmentInfo
}

func (e *entry) Less(rhs btree.Item) bool {
	return e.info.Start.Less(rhs.(*entry).info.Start)
}

func New(config Config) *Index {
	return &Index{
		config: config,
		parts:  make(map[rtypes.StreamKey]*partition),
	}
}

func (ix *Index) part(sk rtypes.StreamKey, create bool) *partition {
	ix.m.RLock()
	p := ix.parts[sk]
	ix.m.RUnlock()
	if p != nil || !create {
		return p
	}

	ix.m.Lock()
	defer ix.m.Unlock()
	if p = ix.parts[sk]; p == nil {
		p = &partition{
			byTime: btree.New(2),
			bySeq:  make(map[int64]*entry),
		}
		ix.parts[sk] = p
	}
	return p
}

// Add inserts or overwrites the segment at (date, start) and in the
// sequence map. Re-adding an identical segment is a no-op; diverging
// re-adds follow last-writer-wins.
func (ix *Index) Add(info rtypes.SegmentInfo) {
	p := ix.part(info.StreamKey, true)

	p.m.Lock()
	defer p.m.Unlock()

	if old := p.bySeq[info.SeqId]; old != nil && old.info.Start != info.Start {
		// the sequence moved in time; drop the stale time slot first
		p.byTime.Delete(old)
	}
	e := &entry{info: info}
	p.byTime.ReplaceOrInsert(e)
	p.bySeq[info.SeqId] = e
	logrus.WithField("stream_key", info.StreamKey).Debugf("indexed segment seq=%d start=%s %s dur=%v",
		info.SeqId, info.Start.Date, rtypes.FormatTimeOfDay(info.Start.MS), info.Duration)
}

// Remove deletes the segment from both views atomically with respect to
// readers. Removing an unknown sequence number is a logged no-op.
func (ix *Index) Remove(sk rtypes.StreamKey, seq int64) bool {
	p := ix.part(sk, false)
	if p == nil {
		logrus.WithField("stream_key", sk).Warnf("remove of unknown stream, seq=%d", seq)
		return false
	}

	p.m.Lock()
	defer p.m.Unlock()

	e := p.bySeq[seq]
	if e == nil {
		logrus.WithField("stream_key", sk).Warnf("remove of unknown segment seq=%d", seq)
		return false
	}
	delete(p.bySeq, seq)
	p.byTime.Delete(e)
	return true
}

func (ix *Index) GetBySequence(sk rtypes.StreamKey, seq int64) (rtypes.SegmentInfo, error) {
	p := ix.part(sk, false)
	if p == nil {
		return rtypes.SegmentInfo{}, ErrNotFound
	}

	p.m.Lock()
	defer p.m.Unlock()

	e := p.bySeq[seq]
	if e == nil {
		return rtypes.SegmentInfo{}, ErrNotFound
	}
	return e.info, nil
}

// GetByTimestamp finds the segment playing at (date, ms): the floor entry
// by (date, start) whose interval [start, start+duration) covers ms on the
// same date.
func (ix *Index) GetByTimestamp(sk rtypes.StreamKey, date string, ms int64) (rtypes.SegmentInfo, error) {
	p := ix.part(sk, false)
	if p == nil {
		return rtypes.SegmentInfo{}, ErrNotFound
	}

	p.m.Lock()
	defer p.m.Unlock()

	info, ok := p.covering(date, ms)
	if !ok {
		return rtypes.SegmentInfo{}, ErrNotFound
	}
	return info, nil
}

// covering runs under the partition lock.
func (p *partition) covering(date string, ms int64) (rtypes.SegmentInfo, bool) {
	pivot := &entry{info: rtypes.SegmentInfo{Start: rtypes.TimeKey{Date: date, MS: ms}}}
	var found *entry
	p.byTime.DescendLessOrEqual(pivot, func(i btree.Item) bool {
		found = i.(*entry)
		return false
	})
	if found == nil || !found.info.Covers(date, ms) {
		return rtypes.SegmentInfo{}, false
	}
	return found.info, true
}

// GetLive returns the oldest max segments of the trailing LiveWindow
// entries in ascending time order. The newest entries of the window are
// deliberately withheld. max<=0 selects the configured default.
func (ix *Index) GetLive(sk rtypes.StreamKey, max int) ([]rtypes.SegmentInfo, error) {
	if max <= 0 {
		max = ix.config.LiveMaxSegments
	}
	p := ix.part(sk, false)
	if p == nil {
		return nil, ErrNotEnoughSegments
	}

	p.m.Lock()
	defer p.m.Unlock()

	if p.byTime.Len() < ix.config.LiveWindow {
		return nil, ErrNotEnoughSegments
	}

	window := make([]rtypes.SegmentInfo, 0, ix.config.LiveWindow)
	p.byTime.Descend(func(i btree.Item) bool {
		window = append(window, i.(*entry).info)
		return len(window) < ix.config.LiveWindow
	})
	// window is newest-first; flip to ascending
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	if max > len(window) {
		max = len(window)
	}
	return window[:max], nil
}

// GetDvr returns up to max segments in ascending time order starting from
// the segment covering (date, ms). The result is empty when nothing covers
// the requested instant.
func (ix *Index) GetDvr(sk rtypes.StreamKey, date string, ms int64, max int) []rtypes.SegmentInfo {
	if max <= 0 {
		max = ix.config.DvrMaxSegments
	}
	p := ix.part(sk, false)
	if p == nil {
		return nil
	}

	p.m.Lock()
	defer p.m.Unlock()

	first, ok := p.covering(date, ms)
	if !ok {
		return nil
	}

	result := make([]rtypes.SegmentInfo, 0, max)
	pivot := &entry{info: first}
	p.byTime.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		result = append(result, i.(*entry).info)
		return len(result) < max
	})
	return result
}

// Len reports the number of indexed segments for a stream key.
func (ix *Index) Len(sk rtypes.StreamKey) int {
	p := ix.part(sk, false)
	if p == nil {
		return 0
	}
	p.m.Lock()
	defer p.m.Unlock()
	return p.byTime.Len()
}

// StreamKeys lists the keys that have at least one indexed segment.
func (ix *Index) StreamKeys() []rtypes.StreamKey {
	ix.m.RLock()
	defer ix.m.RUnlock()
	keys := make([]rtypes.StreamKey, 0, len(ix.parts))
	for sk := range ix.parts {
		keys = append(keys, sk)
	}
	return keys
}
