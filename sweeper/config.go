package sweeper

import "time"

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))

	return
}

type Config struct {
	// RetentionPeriod is how long a segment file stays on disk.
	RetentionPeriod duration
	// Interval is the pause between sweep cycles.
	Interval duration
	// Exceptions lists file names that survive every sweep.
	Exceptions []string
}

func NewConfig() Config {
	return Config{
		RetentionPeriod: duration{30 * time.Minute},
		Interval:        duration{time.Minute},
	}
}
