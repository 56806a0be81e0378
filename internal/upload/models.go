package upload

import (
	"errors"
	"io"
	"time"

	"vidclient/internal/asset"

	"github.com/google/uuid"
)

var (
	// ErrNoFileSelected is returned before any network activity when Submit is
	// called without a file.
	ErrNoFileSelected = errors.New("no file selected")

	// ErrFileTooLarge is returned before any network activity when the file
	// exceeds the configured maximum.
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrUploadFailed wraps transport failures and non-2xx responses.
	ErrUploadFailed = errors.New("upload failed")

	// ErrMalformedUploadResponse is returned when a successful response does
	// not carry an {"id": "..."} body.
	ErrMalformedUploadResponse = errors.New("malformed upload response")
)

// File is a selected binary blob. Size is the declared length used for
// progress reporting. ContentType is derived from Name when empty.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// State is the terminal state of an upload session.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Progress is one progress notification.
type Progress struct {
	SessionID  uuid.UUID
	BytesSent  int64
	TotalBytes int64
	Percent    int
}

// ProgressFunc receives progress notifications for one session, sequentially
// and in non-decreasing order.
type ProgressFunc func(Progress)

// Session is a snapshot of one upload.
type Session struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	BytesSent  int64     `json:"bytes_sent"`
	TotalBytes int64     `json:"total_bytes"`
	Percent    int       `json:"percent"`
	State      State     `json:"state"`
	AssetID    asset.ID  `json:"asset_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// uploadResponse is the structured body the upload endpoint returns.
type uploadResponse struct {
	ID string `json:"id"`
}
