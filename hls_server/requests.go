package hls_server

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

type MasterPlaylistRequest struct{}

type LivePlaylistRequest struct {
	StreamKey string `mapstructure:"stream_key"`
}

type DvrPlaylistRequest struct {
	StreamKey   string `mapstructure:"stream_key"`
	Date        string `mapstructure:"date"`
	Timestamp   string `mapstructure:"timestamp"`
	MaxSegments int    `mapstructure:"max_segments"`
}

type SegmentRequest struct {
	StreamKey string `mapstructure:"stream_key"`
	Timestamp string `mapstructure:"timestamp"`
	Seq       int64  `mapstructure:"seq"`
	Ext       string `mapstructure:"ext"`
}

// AddMetadataRequest arrives as a JSON body, not as path variables.
type AddMetadataRequest struct {
	StreamKey       string  `json:"stream_key"`
	Date            string  `json:"date"`
	StartTimestamp  string  `json:"start_timestamp"`
	SequenceNumber  int64   `json:"sequence_number"`
	DurationSeconds float64 `json:"duration"`
	FileName        string  `json:"file_name"`
}

func (r *AddMetadataRequest) ParseBody(body io.Reader) error {
	if err := json.NewDecoder(body).Decode(r); err != nil {
		return errors.Wrap(err, "cannot decode metadata body")
	}
	return nil
}

type RemoveMetadataRequest struct {
	StreamKey      string `mapstructure:"stream_key"`
	SequenceNumber int64  `mapstructure:"sequence_number"`
}

type LiveWindowRequest LivePlaylistRequest
type DvrWindowRequest DvrPlaylistRequest

type PauseRequest struct {
	ClientId  string `mapstructure:"client_id"`
	StreamKey string `mapstructure:"stream_key"`
	Date      string `mapstructure:"date"`
	Timestamp string `mapstructure:"timestamp"`
}

type ResumeRequest struct {
	ClientId    string `mapstructure:"client_id"`
	MaxSegments int    `mapstructure:"max_segments"`
}
