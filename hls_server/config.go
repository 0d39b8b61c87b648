package hls_server

// Route templates live in the config so tests can inspect them and the
// worker can build file names from the same patterns the router matches.
// Stream keys are resolutions ("1920x1080") or language codes ("eng");
// underscores are reserved as file-name separators and never appear in a
// key.
type DvrHlsConfig struct {
	HttpHost string
	HttpPort int

	MasterPlaylist string
	LivePlaylist   string
	Segment        string
	DvrPlaylist    string

	LiveWindow string
	DvrWindow  string

	AddMetadata    string
	RemoveMetadata string

	Pause  string
	Resume string
}

func NewDvrHlsConfig() DvrHlsConfig {
	return DvrHlsConfig{
		HttpHost: "",
		HttpPort: 8080,

		MasterPlaylist: "/playlist.m3u8",
		LivePlaylist:   "/playlist_{stream_key:[0-9a-zA-Z-]+}.m3u8",
		Segment:        "/playlist_{stream_key:[0-9a-zA-Z-]+}_{timestamp:[0-9]{6}}__{seq:[0-9]+}.{ext:ts|vtt}",
		DvrPlaylist:    "/dvr/playlist_{stream_key:[0-9a-zA-Z-]+}.m3u8",

		LiveWindow: "/metadata/{stream_key:[0-9a-zA-Z-]+}/live",
		DvrWindow:  "/metadata/{stream_key:[0-9a-zA-Z-]+}/dvr",

		AddMetadata:    "/add_metadata",
		RemoveMetadata: "/remove_metadata/{stream_key:[0-9a-zA-Z-]+}/{sequence_number:[0-9]+}",

		Pause:  "/pause",
		Resume: "/resume",
	}
}
