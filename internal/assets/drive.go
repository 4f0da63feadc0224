// Package assets uploads record images to remote storage and hands back the
// public links that records keep in their images list.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
)

// Uploader turns local image URIs into remote links, in input order.
type Uploader interface {
	Upload(ctx context.Context, uris []string) ([]string, error)
}

// Ensure interface conformance
var (
	_ Uploader  = (*Drive)(nil)
	_ fileStore = driveFiles{}
)

const maxParallelUploads = 4

// fileStore is the slice of the Drive API used by Drive.
type fileStore interface {
	Create(ctx context.Context, name, mimeType, folderID string, r io.Reader) (id, link string, err error)
	Share(ctx context.Context, id string) error
}

// Drive uploads into a single Google Drive folder and shares every file with
// anyone holding the link.
type Drive struct {
	files    fileStore
	folderID string
}

// NewDrive creates a Drive uploader authenticated with service account
// credentials.
func NewDrive(ctx context.Context, folderID string, credentialsJSON []byte) (*Drive, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("missing drive folder id")
	}

	svc, err := drive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	slog.InfoContext(ctx, "Google Drive service created successfully", "folder_id", folderID)
	return &Drive{files: driveFiles{svc: svc}, folderID: folderID}, nil
}

// LoadCredentials returns inline JSON when set, otherwise the contents of file.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)

	switch {
	case inlineJSON != "":
		return []byte(inlineJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Upload sends every local URI to Drive concurrently. Remote http(s) URIs are
// returned unchanged. Any single failure fails the whole call.
func (d *Drive) Upload(ctx context.Context, uris []string) ([]string, error) {
	out := make([]string, len(uris))
	if len(uris) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, uri := range uris {
		g.Go(func() error {
			link, err := d.uploadOne(gctx, uri)
			if err != nil {
				return fmt.Errorf("upload %s: %w", uri, err)
			}
			out[i] = link
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Image upload failed", "error", err, "count", len(uris))
		return nil, err
	}

	slog.InfoContext(ctx, "Images uploaded", "count", len(uris))
	return out, nil
}

func (d *Drive) uploadOne(ctx context.Context, uri string) (string, error) {
	if IsRemote(uri) {
		return uri, nil
	}

	path, err := LocalPath(uri)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, link, err := d.files.Create(ctx, uuid.NewString()+ext, mimeType, d.folderID, f)
	if err != nil {
		return "", fmt.Errorf("create drive file: %w", err)
	}
	if err := d.files.Share(ctx, id); err != nil {
		return "", fmt.Errorf("share drive file: %w", err)
	}
	if link == "" {
		link = "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
	}

	slog.DebugContext(ctx, "Image uploaded to Drive", "file_id", id, "mime_type", mimeType)
	return link, nil
}

// IsRemote reports whether uri already points at an http(s) resource.
func IsRemote(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// LocalPath resolves a file:// URI or plain path to a filesystem path.
func LocalPath(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", errors.New("empty image uri")
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse image uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported image uri scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("image uri %q has no path", uri)
	}
	return u.Path, nil
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) Create(ctx context.Context, name, mimeType, folderID string, r io.Reader) (string, string, error) {
	meta := &drive.File{Name: name, MimeType: mimeType, Parents: []string{folderID}}
	f, err := d.svc.Files.Create(meta).
		Media(r).
		Fields("id", "webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", "", err
	}
	return f.Id, f.WebContentLink, nil
}

func (d driveFiles) Share(ctx context.Context, id string) error {
	_, err := d.svc.Permissions.Create(id, &drive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	return err
}
