package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	stdhttp "net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

const (
	maxFiles    = 30
	maxFileSize = 50 * 1024 * 1024
)

// fileInfo is a validated attachment ready for upload.
type fileInfo struct {
	path     string
	name     string
	size     int64
	mimeType string
	isImage  bool
}

// validateFiles dedupes, counts, and stats the attachment paths before any
// network call. Every failure names the offending path.
func validateFiles(paths []string) ([]fileInfo, error) {
	seen := make(map[string]bool, len(paths))
	var unique []string

	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			unique = append(unique, abs)
		}
	}

	if len(unique) > maxFiles {
		return nil, &FileValidationError{
			Path:   unique[0],
			Reason: fmt.Sprintf("too many files: %d, maximum allowed is %d", len(unique), maxFiles),
		}
	}

	infos := make([]fileInfo, 0, len(unique))
	for _, path := range unique {
		stat, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &FileValidationError{Path: path, Reason: "file not found"}
			}
			return nil, &FileValidationError{Path: path, Reason: fmt.Sprintf("cannot access file: %v", err)}
		}
		if stat.IsDir() || !stat.Mode().IsRegular() {
			return nil, &FileValidationError{Path: path, Reason: "path is not a regular file"}
		}
		if stat.Size() == 0 {
			return nil, &FileValidationError{Path: path, Reason: "file is empty"}
		}
		if stat.Size() > maxFileSize {
			return nil, &FileValidationError{
				Path:   path,
				Reason: fmt.Sprintf("file exceeds 50MB limit: %.1fMB", float64(stat.Size())/(1024*1024)),
			}
		}

		mt := detectMIMEType(path)
		infos = append(infos, fileInfo{
			path:     path,
			name:     filepath.Base(path),
			size:     stat.Size(),
			mimeType: mt,
			isImage:  strings.HasPrefix(mt, "image/"),
		})
	}

	return infos, nil
}

// detectMIMEType resolves the content type from the filename extension,
// sniffing the content only when the extension is unknown.
func detectMIMEType(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		return strings.TrimSpace(mt)
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}

// uploadFile runs the two-phase upload: request presigned credentials keyed
// by a generated UUID, then multipart-POST the bytes to the returned storage
// endpoint. Returns the object URL to reference in the ask payload.
func (c *Conversation) uploadFile(ctx context.Context, info fileInfo) (string, error) {
	fileUUID := uuid.New().String()

	req := models.UploadRequest{
		Files: map[string]models.UploadFileSpec{
			fileUUID: {
				Filename:    info.path,
				ContentType: info.mimeType,
				Source:      "default",
				FileSize:    info.size,
				ForceImage:  info.isImage,
			},
		},
	}

	resp, err := c.http.Post(ctx, endpointUpload, req)
	if err != nil {
		return "", &FileUploadError{Path: info.path, Reason: "requesting upload credentials", Err: err}
	}
	defer resp.Body.Close()

	var uploadResp models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", &FileUploadError{Path: info.path, Reason: "decoding upload credentials", Err: err}
	}

	result, ok := uploadResp.Results[fileUUID]
	if !ok || result.S3ObjectURL == "" {
		return "", &FileUploadError{Path: info.path, Reason: "no upload URL returned"}
	}
	if result.S3BucketURL == "" || len(result.Fields) == 0 {
		return "", &FileUploadError{Path: info.path, Reason: "missing S3 upload credentials"}
	}

	if err := postToStorage(ctx, result.S3BucketURL, result.Fields, info); err != nil {
		return "", &FileUploadError{Path: info.path, Reason: "S3 upload failed", Err: err}
	}

	objectURL := result.S3ObjectURL
	if info.isImage {
		objectURL = rewriteImageURL(objectURL)
	}

	c.logger.Debug("file uploaded", "path", info.path, "size", info.size, "url", objectURL)
	return objectURL, nil
}

// postToStorage sends the multipart form to the presigned target. Form
// fields must precede the file part. The storage endpoint expects a plain
// client, not the fingerprinted session.
func postToStorage(ctx context.Context, bucketURL string, fields map[string]string, info fileInfo) error {
	content, err := os.ReadFile(info.path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("writing field %s: %w", name, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, info.name))
	header.Set("Content-Type", info.mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("writing file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing form: %w", err)
	}

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, bucketURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case stdhttp.StatusOK, stdhttp.StatusCreated, stdhttp.StatusNoContent:
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// virtualHostedS3 matches virtual-hosted bucket URLs for rewrite to the
// path-style form the answer UI can embed.
var virtualHostedS3 = regexp.MustCompile(`https://([^.]+)\.s3\.([^.]+)\.amazonaws\.com/(.+)`)

func rewriteImageURL(objectURL string) string {
	m := virtualHostedS3.FindStringSubmatch(objectURL)
	if len(m) != 4 {
		return objectURL
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", m[2], m[1], m[3])
}
