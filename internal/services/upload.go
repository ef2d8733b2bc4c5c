package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
)

const (
	maxScreenshots    = 10
	maxScreenshotSize = 5 << 20 // 5MB
)

var screenshotExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// UploadService stores bug screenshots on local disk under UploadDir and
// returns the public /uploads paths clients embed in bug reports.
type UploadService interface {
	SaveScreenshots(files []*multipart.FileHeader) ([]string, error)
	UploadDir() string
}

type uploadService struct {
	log *logger.Logger
	dir string
}

func NewUploadService(log *logger.Logger, dir string) (UploadService, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &uploadService{
		log: log.With("service", "UploadService"),
		dir: dir,
	}, nil
}

func (us *uploadService) UploadDir() string {
	return us.dir
}

func (us *uploadService) SaveScreenshots(files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", domain.ErrInvalidInput)
	}
	if len(files) > maxScreenshots {
		return nil, fmt.Errorf("%w: at most %d screenshots per upload", domain.ErrInvalidInput, maxScreenshots)
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		mime, ok := screenshotExtensions[ext]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an allowed image type", domain.ErrInvalidInput, fh.Filename)
		}
		if fh.Size > maxScreenshotSize {
			return nil, fmt.Errorf("%w: %q exceeds the 5MB limit", domain.ErrInvalidInput, fh.Filename)
		}
		if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			return nil, fmt.Errorf("%w: %q is not an image", domain.ErrInvalidInput, fh.Filename)
		}

		name := uuid.New().String() + ext
		if err := us.writeFile(fh, filepath.Join(us.dir, name)); err != nil {
			return nil, err
		}
		us.log.Debug("Screenshot stored", "file", name, "mime", mime, "size", fh.Size)
		paths = append(paths, "/uploads/"+name)
	}
	return paths, nil
}

func (us *uploadService) writeFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(src, maxScreenshotSize+1)); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
