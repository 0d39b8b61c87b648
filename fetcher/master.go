package fetcher

import (
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/rtypes"
)

// Variant is one video rendition declared by the master manifest.
type Variant struct {
	StreamKey rtypes.StreamKey
	URL       string
}

// Subtitle is one subtitle track declared by the master manifest.
type Subtitle struct {
	Language rtypes.StreamKey
	URL      string
}

// Master is the parsed master manifest. Closed-caption declarations are
// kept as raw attribute maps; they are metadata only and never downloaded.
type Master struct {
	Variants       []Variant
	Subtitles      []Subtitle
	ClosedCaptions []map[string]string
	Raw            []byte
}

// Fetcher downloads and parses the upstream master manifest.
type Fetcher struct {
	config Config
	client *http.Client
}

func NewFetcher(config Config) *Fetcher {
	return &Fetcher{
		config: config,
		client: &http.Client{Timeout: config.SegmentTimeout.Duration},
	}
}

// FetchMaster retrieves the master manifest and extracts variant, subtitle
// and closed-caption descriptors. Network failures and non-2xx responses
// are transient errors for the caller to retry; a malformed manifest line
// is skipped with a warning.
func (f *Fetcher) FetchMaster() (*Master, error) {
	resp, err := f.client.Get(f.config.SourceURL)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot fetch master manifest %s", f.config.SourceURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("master manifest %s: status %d", f.config.SourceURL, resp.StatusCode)
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read master manifest body")
	}

	master := parseMaster(f.config.SourceURL, raw)
	logrus.Infof("master manifest parsed: %d variants, %d subtitles, %d closed captions",
		len(master.Variants), len(master.Subtitles), len(master.ClosedCaptions))
	return master, nil
}

func parseMaster(baseURL string, raw []byte) *Master {
	master := &Master{Raw: raw}
	lines := strings.Split(string(raw), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			resolution, ok := attrs["RESOLUTION"]
			if !ok {
				logrus.Warnf("stream-inf without RESOLUTION, skipping: %s", line)
				continue
			}
			uri := nextURILine(lines, i+1)
			if uri == "" {
				logrus.Warnf("stream-inf without playlist URI, skipping: %s", line)
				continue
			}
			master.Variants = append(master.Variants, Variant{
				StreamKey: rtypes.StreamKey(resolution),
				URL:       resolveURL(baseURL, uri),
			})
		case strings.HasPrefix(line, "#EXT-X-MEDIA"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			switch attrs["TYPE"] {
			case "SUBTITLES":
				uri, ok := attrs["URI"]
				if !ok {
					logrus.Warnf("subtitle media without URI, skipping: %s", line)
					continue
				}
				lang := attrs["LANGUAGE"]
				if lang == "" {
					logrus.Warnf("subtitle media without LANGUAGE, skipping: %s", line)
					continue
				}
				master.Subtitles = append(master.Subtitles, Subtitle{
					Language: rtypes.StreamKey(lang),
					URL:      resolveURL(baseURL, uri),
				})
			case "CLOSED-CAPTIONS":
				master.ClosedCaptions = append(master.ClosedCaptions, attrs)
			}
		}
	}
	return master
}

// nextURILine finds the playlist URI that follows a stream-inf tag.
func nextURILine(lines []string, from int) string {
	for _, line := range lines[from:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

// parseAttributes splits an HLS attribute list, honoring quoted values
// that may contain commas.
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, list[start:])

	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		attrs[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return attrs
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
