package sfs

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type Config struct {
	Basedir      string
	MaxCacheSize int64
	CacheTTL     duration
}

func NewConfig() Config {
	return Config{
		Basedir:      "/tmp/dvr_segments/",
		MaxCacheSize: 1024 * 1024 * 64,
		CacheTTL:     duration{2 * time.Minute},
	}
}
