package rtypes

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StreamKey identifies one downloadable rendition of the source stream:
// a resolution string ("1920x1080") for video variants or a language code
// ("eng") for subtitle tracks.
type StreamKey string

const (
	TsExt  = "ts"
	VttExt = "vtt"
)

// Stream keys may not contain '_' (the file-name field separator) or path
// characters.
var isValidStreamKey = regexp.MustCompile(`^[[:alnum:]][[:alnum:]-]*$`).MatchString

func (sk StreamKey) Valid() bool {
	return isValidStreamKey(string(sk))
}

// TimeKey orders segments by wall-clock start: calendar day first, then
// milliseconds since midnight. Dates are ISO "2006-01-02" strings, so
// lexicographic compare equals chronological compare.
type TimeKey struct {
	Date string
	MS   int64
}

func (tk TimeKey) Less(rhs TimeKey) bool {
	cmp := strings.Compare(tk.Date, rhs.Date)
	if cmp != 0 {
		return cmp < 0
	}
	return tk.MS < rhs.MS
}

func TimeKeyOf(t time.Time) TimeKey {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return TimeKey{
		Date: t.Format("2006-01-02"),
		MS:   int64(t.Sub(midnight) / time.Millisecond),
	}
}

// ParseTimeOfDay parses "15:04:05.000" (millisecond part optional) into
// milliseconds since midnight.
func ParseTimeOfDay(s string) (int64, error) {
	var h, m int64
	var sec float64
	n, err := fmt.Sscanf(s, "%d:%d:%f", &h, &m, &sec)
	if n != 3 || err != nil {
		return 0, errors.Wrapf(err, "cannot parse time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec >= 60 {
		return 0, errors.Errorf("time of day out of range %q", s)
	}
	return h*3600*1000 + m*60*1000 + int64(sec*1000+0.5), nil
}

func FormatTimeOfDay(ms int64) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// SegmentInfo is the immutable metadata record for one downloaded segment.
type SegmentInfo struct {
	StreamKey StreamKey     `json:"stream_key"`
	Start     TimeKey       `json:"-"`
	SeqId     int64         `json:"sequence_number"`
	Duration  time.Duration `json:"duration"`
	FileName  string        `json:"file_name"`
}

func (si SegmentInfo) DurationMS() int64 {
	return int64(si.Duration / time.Millisecond)
}

// Covers reports whether ts falls inside [start, start+duration) on the
// segment's own date. The lower bound is inclusive, the upper exclusive.
func (si SegmentInfo) Covers(date string, ms int64) bool {
	return si.Start.Date == date && si.Start.MS <= ms && ms < si.Start.MS+si.DurationMS()
}
