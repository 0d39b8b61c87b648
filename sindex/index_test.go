package sindex_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
)

const (
	testKey  = rtypes.StreamKey("1920x1080")
	testDate = "2026-03-04"
)

type IndexTestsSuite struct {
	suite.Suite
	index *sindex.Index
}

func (s *IndexTestsSuite) SetupTest() {
	s.index = sindex.New(sindex.NewConfig())
}

func (s *IndexTestsSuite) segment(seq int64, ms int64, dur time.Duration) rtypes.SegmentInfo {
	return rtypes.SegmentInfo{
		StreamKey: testKey,
		Start:     rtypes.TimeKey{Date: testDate, MS: ms},
		SeqId:     seq,
		Duration:  dur,
		FileName:  rtypes.BuildSegmentName(testKey, rtypes.StampOf(ms), seq, rtypes.TsExt),
	}
}

// fill adds n consecutive 10s segments starting at seq 1, 10:00:00.
func (s *IndexTestsSuite) fill(n int) {
	base := int64(10 * 3600000)
	for i := 0; i < n; i++ {
		s.index.Add(s.segment(int64(i+1), base+int64(i)*10000, 10*time.Second))
	}
}

func (s *IndexTestsSuite) TestAddGetBySequence() {
	si := s.segment(7, 57965262, 10*time.Second)
	s.index.Add(si)

	got, err := s.index.GetBySequence(testKey, 7)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), si, got)
}

func (s *IndexTestsSuite) TestGetBySequenceUnknown() {
	_, err := s.index.GetBySequence(testKey, 7)
	assert.Equal(s.T(), sindex.ErrNotFound, err)

	s.index.Add(s.segment(1, 1000, 10*time.Second))
	_, err = s.index.GetBySequence(testKey, 7)
	assert.Equal(s.T(), sindex.ErrNotFound, err)
	_, err = s.index.GetBySequence("other", 1)
	assert.Equal(s.T(), sindex.ErrNotFound, err)
}

func (s *IndexTestsSuite) TestRemove() {
	s.fill(20)
	require.True(s.T(), s.index.Remove(testKey, 5))

	_, err := s.index.GetBySequence(testKey, 5)
	assert.Equal(s.T(), sindex.ErrNotFound, err)

	res := s.index.GetDvr(testKey, testDate, 10*3600000, 20)
	for _, i := range res {
		assert.NotEqual(s.T(), int64(5), i.SeqId)
	}
	live, err := s.index.GetLive(testKey, 20)
	if err == nil {
		for _, i := range live {
			assert.NotEqual(s.T(), int64(5), i.SeqId)
		}
	}
}

func (s *IndexTestsSuite) TestRemoveUnknownIsNoop() {
	assert.False(s.T(), s.index.Remove(testKey, 1))
	s.fill(1)
	assert.False(s.T(), s.index.Remove(testKey, 2))
	assert.Equal(s.T(), 1, s.index.Len(testKey))
}

func (s *IndexTestsSuite) TestGetByTimestampBoundaries() {
	// starts 16:06:05.262 and 16:06:15.262, 10s each
	s.index.Add(s.segment(1, 57965262, 10*time.Second))
	s.index.Add(s.segment(2, 57975262, 10*time.Second))

	got, err := s.index.GetByTimestamp(testKey, testDate, 57968262) // 16:06:08.262
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), got.SeqId)

	got, err = s.index.GetByTimestamp(testKey, testDate, 57980000) // 16:06:20.000
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), got.SeqId)

	_, err = s.index.GetByTimestamp(testKey, testDate, 57965000) // 16:06:05.000
	assert.Equal(s.T(), sindex.ErrNotFound, err)

	got, err = s.index.GetByTimestamp(testKey, testDate, 57965262)
	require.NoError(s.T(), err, "exact start is covered")
	assert.Equal(s.T(), int64(1), got.SeqId)

	_, err = s.index.GetByTimestamp(testKey, testDate, 57985262)
	assert.Equal(s.T(), sindex.ErrNotFound, err, "end of the last segment is not covered")

	_, err = s.index.GetByTimestamp(testKey, "2026-03-05", 57968262)
	assert.Equal(s.T(), sindex.ErrNotFound, err)
}

func (s *IndexTestsSuite) TestGetLiveNeedsFullWindow() {
	s.fill(19)
	_, err := s.index.GetLive(testKey, 10)
	assert.Equal(s.T(), sindex.ErrNotEnoughSegments, err)
}

func (s *IndexTestsSuite) TestGetLiveWindow() {
	s.fill(20)

	res, err := s.index.GetLive(testKey, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), res, 10)

	// oldest 10 of the trailing 20, ascending; the newest 10 are withheld
	for i, si := range res {
		assert.Equal(s.T(), int64(i+1), si.SeqId)
	}

	s.fill(25)
	res, err = s.index.GetLive(testKey, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), res, 10)
	for i, si := range res {
		assert.Equal(s.T(), int64(i+6), si.SeqId)
	}
}

func (s *IndexTestsSuite) TestGetLiveDefaultMax() {
	s.fill(20)
	res, err := s.index.GetLive(testKey, 0)
	require.NoError(s.T(), err)
	assert.Len(s.T(), res, 10)
}

func (s *IndexTestsSuite) TestGetDvr() {
	s.fill(30)
	base := int64(10 * 3600000)

	res := s.index.GetDvr(testKey, testDate, base+55000, 5) // inside seq 6
	require.Len(s.T(), res, 5)
	for i, si := range res {
		assert.Equal(s.T(), int64(i+6), si.SeqId)
		if i > 0 {
			assert.True(s.T(), res[i-1].Start.Less(si.Start))
		}
	}
}

func (s *IndexTestsSuite) TestGetDvrNoCoverage() {
	s.fill(5)
	assert.Empty(s.T(), s.index.GetDvr(testKey, testDate, 0, 5))
	assert.Empty(s.T(), s.index.GetDvr("other", testDate, 10*3600000, 5))
}

func (s *IndexTestsSuite) TestGetDvrTailShorterThanMax() {
	s.fill(10)
	base := int64(10 * 3600000)
	res := s.index.GetDvr(testKey, testDate, base+85000, 5) // inside seq 9
	require.Len(s.T(), res, 2)
	assert.Equal(s.T(), int64(9), res[0].SeqId)
	assert.Equal(s.T(), int64(10), res[1].SeqId)
}

func (s *IndexTestsSuite) TestIdempotentReadd() {
	s.fill(20)
	before, err := s.index.GetLive(testKey, 10)
	require.NoError(s.T(), err)

	s.fill(20)
	assert.Equal(s.T(), 20, s.index.Len(testKey))
	after, err := s.index.GetLive(testKey, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), before, after)
}

func (s *IndexTestsSuite) TestReaddMovedStart() {
	s.index.Add(s.segment(1, 1000, 10*time.Second))
	s.index.Add(s.segment(1, 5000, 10*time.Second))

	assert.Equal(s.T(), 1, s.index.Len(testKey))
	got, err := s.index.GetBySequence(testKey, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(5000), got.Start.MS)

	_, err = s.index.GetByTimestamp(testKey, testDate, 1000)
	assert.Equal(s.T(), sindex.ErrNotFound, err, "stale time slot must be gone")
}

func (s *IndexTestsSuite) TestStreamIsolation() {
	s.fill(20)
	s.index.Add(rtypes.SegmentInfo{
		StreamKey: "eng",
		Start:     rtypes.TimeKey{Date: testDate, MS: 1000},
		SeqId:     1,
		Duration:  10 * time.Second,
		FileName:  "playlist_eng_000001__1.vtt",
	})

	_, err := s.index.GetLive("eng", 10)
	assert.Equal(s.T(), sindex.ErrNotEnoughSegments, err)
	assert.Equal(s.T(), 1, s.index.Len("eng"))
	assert.ElementsMatch(s.T(), []rtypes.StreamKey{testKey, "eng"}, s.index.StreamKeys())
}

func (s *IndexTestsSuite) TestConcurrentAccess() {
	base := int64(10 * 3600000)
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g * 50; i < (g+1)*50; i++ {
				s.index.Add(s.segment(int64(i+1), base+int64(i)*10000, 10*time.Second))
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if si, err := s.index.GetBySequence(testKey, int64(i+1)); err == nil {
					// both views must agree while writers are racing
					got, terr := s.index.GetByTimestamp(testKey, testDate, si.Start.MS)
					if assert.NoError(s.T(), terr) {
						assert.Equal(s.T(), si.SeqId, got.SeqId)
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(s.T(), 200, s.index.Len(testKey))
	res, err := s.index.GetLive(testKey, 10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(181), res[0].SeqId)
}

func TestIndexTestsSuite(t *testing.T) {
	suite.Run(t, &IndexTestsSuite{})
}
