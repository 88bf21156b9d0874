package capture

// Record is the persisted knowledge about one captured file.
// FileHash is the identity key for reconciliation and is never rewritten;
// FileName and FilePathAtCapture move together when the file is observed elsewhere.
type Record struct {
	// ID is a ULID assigned at insert
	ID string `json:"id"`

	// CreatedAt is the Unix timestamp (seconds) of the capture
	CreatedAt int64 `json:"created_at"`

	// FileHash is the hex SHA-256 of the file contents
	FileHash string `json:"file_hash"`

	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`

	// FilePathAtCapture is the last known absolute path
	FilePathAtCapture string `json:"file_path_at_capture"`

	// OriginTitle and OriginURL describe where the download came from (required)
	OriginTitle string `json:"origin_title"`
	OriginURL   string `json:"origin_url"`

	Note      *string `json:"note"`
	Browser   string  `json:"browser"`
	SourceApp *string `json:"source_app"`
	MimeType  *string `json:"mime_type"`
}

// DefaultBrowser is recorded when the caller does not name one.
const DefaultBrowser = "safari"
