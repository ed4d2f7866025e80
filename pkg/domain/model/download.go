package model

// DownloadResult represents a dataset made available on the local filesystem
type DownloadResult struct {
	Dir    string   // Directory holding the dataset files
	Files  []string // Files relative to Dir
	Size   int64    // Total size in bytes
	Cached bool     // True when served from a previous download
}
