package worker

import (
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/fetcher"
	"github.com/abmishra1234/DVR-Feature-Livestream/hls_server"
	"github.com/abmishra1234/DVR-Feature-Livestream/ingest"
	"github.com/abmishra1234/DVR-Feature-Livestream/sfs"
	"github.com/abmishra1234/DVR-Feature-Livestream/sindex"
	"github.com/abmishra1234/DVR-Feature-Livestream/sweeper"
)

const (
	DEFAULT_CONFIG = "default"
	TESTING_CONFIG = "testing"
)

type Config struct {
	LogLevel string

	SindexConfig  sindex.Config
	SfsConfig     sfs.Config
	FetcherConfig fetcher.Config
	IngestConfig  ingest.Config
	SweeperConfig sweeper.Config
	DvrHlsConfig  hls_server.DvrHlsConfig
}

func NewConfig(configPath string) Config {
	logrus.Infof("Starting with config path %+s", configPath)
	config := Config{
		LogLevel:      "debug",
		SindexConfig:  sindex.NewConfig(),
		SfsConfig:     sfs.NewConfig(),
		FetcherConfig: fetcher.NewConfig(),
		IngestConfig:  ingest.NewConfig(),
		SweeperConfig: sweeper.NewConfig(),
		DvrHlsConfig:  hls_server.NewDvrHlsConfig(),
	}

	switch configPath {
	case DEFAULT_CONFIG, "":
	case TESTING_CONFIG:
		config.SfsConfig.Basedir = filepath.Join("/tmp", "dvr_testing")
		config.IngestConfig.PollInterval.Duration = 200 * time.Millisecond
		config.SweeperConfig.Interval.Duration = time.Second
	default:
		meta, err := toml.DecodeFile(configPath, &config)
		if err != nil {
			logrus.Panicf("Cannot init config %+v", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			logrus.Panicf("Unknown config keys %+v", undecoded)
		}
	}

	switch config.LogLevel {
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.Panicf("Bad log level: %s:", config.LogLevel)
	}
	logrus.Infof("Final config: %+v ", config)

	return config
}
