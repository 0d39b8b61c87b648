package ingest

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type Config struct {
	// PollInterval is the sleep between completed rounds.
	PollInterval duration
	// RunDuration stops scheduling new rounds once elapsed; zero or
	// negative runs forever.
	RunDuration duration
	// Workers bounds concurrent playlist syncs within a round.
	Workers uint
}

func NewConfig() Config {
	return Config{
		PollInterval: duration{5 * time.Second},
		Workers:      4,
	}
}
