package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
)

// HTTPFetcher is the built-in provider for direct media URLs. It downloads
// over plain HTTP with Range-based resume of partial files. Site-specific
// extraction is the job of richer providers plugged in behind the same
// interface.
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. The client timeout bounds the whole
// transfer, so it is sized for large media files.
func NewHTTPFetcher(timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// ExtractMetadata probes the source with a HEAD request.
func (f *HTTPFetcher) ExtractMetadata(ctx context.Context, url string, _ domain.Options) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "build metadata request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err, "metadata request failed")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	return &Metadata{
		Title:        titleFromResponse(url, resp),
		SizeEstimate: max(resp.ContentLength, 0),
	}, nil
}

// Fetch downloads the artifact into req.Dir under the fingerprint-based
// name, resuming a partial file when the server honors Range requests.
func (f *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (string, error) {
	dst := filepath.Join(req.Dir, req.BaseName+extensionFor(req.URL))

	var offset int64
	if info, err := os.Stat(dst); err == nil {
		offset = info.Size()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, err, "build fetch request")
	}
	if offset > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err, "fetch request failed")
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		offset = 0
	}

	file, err := openOutput(dst, offset)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindFilesystem, err, "open output file")
	}
	defer file.Close()

	total := int64(0)
	if resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	written, err := f.copyWithProgress(ctx, file, resp.Body, offset, total, progress)
	if err != nil {
		return "", err
	}

	f.logger.Debug("fetch finished",
		"url", req.URL,
		"path", dst,
		"bytes", offset+written,
	)
	return dst, nil
}

func (f *HTTPFetcher) copyWithProgress(ctx context.Context, dst *os.File, src io.Reader, offset, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, apperrors.Wrap(apperrors.KindCancelled, ctx.Err(), "fetch cancelled")
		default:
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, apperrors.Wrap(apperrors.KindFilesystem, werr, "write output file")
			}
			if nw != nr {
				return written, apperrors.Wrap(apperrors.KindFilesystem, io.ErrShortWrite, "write output file")
			}
			if progress != nil {
				progress(offset+written, total)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			if ctx.Err() != nil {
				return written, apperrors.Wrap(apperrors.KindCancelled, ctx.Err(), "fetch cancelled")
			}
			return written, classifyTransport(rerr, "read response body")
		}
	}
}

func openOutput(dst string, offset int64) (*os.File, error) {
	if offset > 0 {
		return os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	}
	return os.Create(dst)
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuth, fmt.Sprintf("source rejected request: %d", code))
	case code == http.StatusNotFound || code == http.StatusGone:
		return apperrors.New(apperrors.KindNotFound, fmt.Sprintf("source not found: %d", code))
	case code >= 500:
		return apperrors.New(apperrors.KindNetwork, fmt.Sprintf("source unavailable: %d", code))
	default:
		return apperrors.New(apperrors.KindUnknown, fmt.Sprintf("unexpected status: %d", code))
	}
}

func classifyTransport(err error, msg string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(apperrors.KindTimeout, err, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, err, msg)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindCancelled, err, msg)
	}
	return apperrors.Wrap(apperrors.KindNetwork, err, msg)
}

func titleFromResponse(url string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return strings.TrimSuffix(name, path.Ext(name))
			}
		}
	}
	base := path.Base(url)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func extensionFor(url string) string {
	base := path.Base(url)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if ext := path.Ext(base); ext != "" && len(ext) <= 8 {
		return ext
	}
	return ".bin"
}
