package rtypes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Segment files are named playlist_<stream_key>_<HHMMSS>__<seq>.<ext>.
// The double underscore before the sequence number and the trailing
// numeric-then-extension suffix are load-bearing: the downloader, the
// retention sweeper and the HTTP server all parse this convention, so it
// lives here and nowhere else.

func BuildSegmentName(sk StreamKey, hhmmss string, seq int64, ext string) string {
	return fmt.Sprintf("playlist_%s_%s__%d.%s", sk, hhmmss, seq, ext)
}

// SequenceFromName extracts the sequence number from the trailing
// "__<seq>.<ext>" suffix. It tolerates any prefix so upstream-chosen base
// names parse as long as they follow the suffix convention.
func SequenceFromName(name string) (int64, error) {
	idx := strings.LastIndex(name, "__")
	if idx < 0 {
		return 0, errors.Errorf("no sequence separator in %q", name)
	}
	rest := name[idx+2:]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return 0, errors.Errorf("no extension after sequence in %q", name)
	}
	seq, err := strconv.ParseInt(rest[:dot], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad sequence number in %q", name)
	}
	return seq, nil
}

// ParseSegmentName strictly parses the full convention, returning the
// stream key, the HHMMSS start stamp, the sequence number and the
// extension.
func ParseSegmentName(name string) (StreamKey, string, int64, string, error) {
	rest, ok := strings.CutPrefix(name, "playlist_")
	if !ok {
		return "", "", 0, "", errors.Errorf("not a segment name %q", name)
	}
	sep := strings.LastIndex(rest, "__")
	if sep < 0 {
		return "", "", 0, "", errors.Errorf("no sequence separator in %q", name)
	}
	head := rest[:sep]
	us := strings.LastIndexByte(head, '_')
	if us <= 0 {
		return "", "", 0, "", errors.Errorf("no start stamp in %q", name)
	}
	sk, hhmmss := StreamKey(head[:us]), head[us+1:]
	if !sk.Valid() || len(hhmmss) != 6 {
		return "", "", 0, "", errors.Errorf("bad stream key or stamp in %q", name)
	}
	seq, err := SequenceFromName(name)
	if err != nil {
		return "", "", 0, "", err
	}
	ext := name[strings.LastIndexByte(name, '.')+1:]
	return sk, hhmmss, seq, ext, nil
}

// StampOf formats milliseconds since midnight as the HHMMSS file stamp.
func StampOf(ms int64) string {
	return fmt.Sprintf("%02d%02d%02d", ms/3600000, ms/60000%60, ms/1000%60)
}
