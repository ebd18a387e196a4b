package models

// URLInfo is the parsed form of a link, computed once per save.
type URLInfo struct {
	URL          string // link without scheme
	Domain       string // first path segment
	Filename     string // last non-empty segment, "index.html" by default
	RelativePath string
	IsPDF        bool
}

// CapturePaths holds the filesystem locations involved in one save.
// DestinationPath may be rewritten by collision resolution before relocation.
type CapturePaths struct {
	TempPath        string // temp-root/<domain>
	SourcePath      string // located artifact inside the temp root
	DestinationPath string // storage-root/<domain>/<filename>
	DownloadedRoot  string // storage root
}
