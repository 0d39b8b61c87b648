package sindex

type Config struct {
	// LiveWindow is the number of trailing segments consulted by GetLive.
	// Fewer than this many segments means the stream is not ready to serve.
	LiveWindow int
	// LiveMaxSegments is the default live playlist length. The newest
	// LiveWindow-LiveMaxSegments entries are held back as a safety margin
	// against files whose upstream write may still be in flight.
	LiveMaxSegments int
	// DvrMaxSegments is the default DVR playlist length.
	DvrMaxSegments int
}

func NewConfig() Config {
	return Config{
		LiveWindow:      20,
		LiveMaxSegments: 10,
		DvrMaxSegments:  10,
	}
}
