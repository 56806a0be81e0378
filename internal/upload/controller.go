package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"vidclient/internal/asset"
	"vidclient/internal/platform/metrics"

	"github.com/goccy/go-json"
)

const (
	// FieldName is the multipart field the storage service reads the file from.
	FieldName = "file"

	// DefaultChunkSize is the write granularity, and so the progress granularity.
	DefaultChunkSize = 256 << 10

	// DefaultMaxBytes mirrors the storage service's video size limit.
	DefaultMaxBytes = 200 << 20

	maxResponseBytes = 64 << 10
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Controller.
type Config struct {
	// Endpoint is the absolute upload URL, e.g. http://host/api/v1/video/upload.
	Endpoint string

	// ChunkSize defaults to DefaultChunkSize when <= 0.
	ChunkSize int

	// MaxBytes defaults to DefaultMaxBytes when 0. Negative disables the check.
	MaxBytes int64
}

// Controller uploads files to the storage service. It is safe for concurrent
// use; every Submit is an independent session.
type Controller struct {
	client   Doer
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	sessions *registry
}

// NewController returns a Controller. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewController(client Doer, cfg Config, log *slog.Logger, m *metrics.Metrics) *Controller {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Controller{client: client, cfg: cfg, log: log, metrics: m, sessions: newRegistry()}
}

// Submit streams f to the upload endpoint as one multipart POST and returns
// the identifier the server assigned. progress may be nil.
func (c *Controller) Submit(ctx context.Context, f *File, progress ProgressFunc) (asset.ID, error) {
	if f == nil || f.Body == nil {
		return "", ErrNoFileSelected
	}
	if c.cfg.MaxBytes > 0 && f.Size > c.cfg.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, f.Size, c.cfg.MaxBytes)
	}

	sess := c.sessions.begin(f)
	log := c.log.With(slog.String("upload_id", sess.ID.String()), slog.String("file", f.Name))
	log.Info("upload started", slog.Int64("size", f.Size))

	tracker := newProgressTracker(sess.ID, f.Size, c.sessions.progress, progress)
	id, err := c.transfer(ctx, f, tracker)
	if err != nil {
		final := c.sessions.finish(sess.ID, StateFailure, nil)
		log.Error("upload failed",
			slog.Int64("bytes_sent", final.BytesSent),
			slog.String("error", err.Error()))
		if c.metrics != nil {
			c.metrics.ObserveUpload(string(StateFailure), tracker.sent)
		}
		return "", err
	}

	c.sessions.finish(sess.ID, StateSuccess, func(s *Session) { s.AssetID = id })
	log.Info("upload finished", slog.String("asset_id", id.String()), slog.Int64("bytes_sent", tracker.sent))
	if c.metrics != nil {
		c.metrics.ObserveUpload(string(StateSuccess), tracker.sent)
	}
	return id, nil
}

// Sessions returns a snapshot of in-flight uploads, oldest first.
func (c *Controller) Sessions() []Session {
	return c.sessions.snapshot()
}

// Active returns the number of in-flight uploads.
func (c *Controller) Active() int {
	return c.sessions.active()
}

func (c *Controller) transfer(ctx context.Context, f *File, tracker *progressTracker) (asset.ID, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	writeErr := make(chan error, 1)
	go func() {
		err := c.writeBody(mw, f, tracker)
		pw.CloseWithError(err)
		writeErr <- err
	}()

	resp, err := c.client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		if werr := <-writeErr; werr != nil && !errors.Is(werr, io.ErrClosedPipe) && !errors.Is(werr, err) {
			err = werr
		}
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	// The server may answer before draining the body; unblock the writer.
	pr.CloseWithError(io.ErrClosedPipe)
	werr := <-writeErr

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, snippet(body))
	}
	if werr != nil {
		return "", fmt.Errorf("%w: body not fully sent: %w", ErrUploadFailed, werr)
	}
	if readErr != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUploadFailed, readErr)
	}
	return parseUploadResponse(body)
}

func (c *Controller) writeBody(mw *multipart.Writer, f *File, tracker *progressTracker) error {
	name := f.Name
	if name == "" {
		name = "blob"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldName, quoteEscaper.Replace(filepath.Base(name))))
	h.Set("Content-Type", contentTypeFor(f))

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	buf := make([]byte, c.cfg.ChunkSize)
	for {
		n, rerr := io.ReadFull(f.Body, buf)
		if n > 0 {
			if _, err := part.Write(buf[:n]); err != nil {
				return err
			}
			tracker.advance(int64(n))
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read %s: %w", name, rerr)
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}
	tracker.complete()
	return nil
}

func parseUploadResponse(body []byte) (asset.ID, error) {
	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedUploadResponse, snippet(body))
	}
	id := asset.ID(strings.TrimSpace(out.ID))
	if id.Validate() != nil {
		return "", fmt.Errorf("%w: missing id in %s", ErrMalformedUploadResponse, snippet(body))
	}
	return id, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// videoTypes covers the formats the storage service accepts; the system mime
// table is not guaranteed to know them.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

func contentTypeFor(f *File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
