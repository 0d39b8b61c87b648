package fetcher

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type Config struct {
	// SourceURL points at the upstream master manifest.
	SourceURL string
	// MasterManifestName is the stored (and served) master manifest file.
	MasterManifestName string
	// SegmentTimeout bounds every single HTTP fetch, manifest or segment.
	SegmentTimeout duration
}

func NewConfig() Config {
	return Config{
		MasterManifestName: "playlist.m3u8",
		SegmentTimeout:     duration{10 * time.Second},
	}
}
