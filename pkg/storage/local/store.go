package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
)

var voucherNumberPattern = regexp.MustCompile(`^[0-9]{1,32}$`)

// ErrNotFound is returned when no image exists for a voucher.
var ErrNotFound = errors.New("voucher image not found")

// Store keeps rendered voucher images as <voucherNumber>.png under a directory.
type Store struct {
	dir  string
	logg *logger.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewStore creates the image directory when missing.
func NewStore(dir string, logg *logger.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("image dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Store{dir: dir, logg: logg}, nil
}

// Save writes the image atomically and returns its relative URL path.
func (s *Store) Save(ctx context.Context, voucherNumber string, png []byte) (string, error) {
	path, err := s.path(voucherNumber)
	if err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", errors.New("image is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "."+voucherNumber+"-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(png); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename image: %w", err)
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"voucher_number": voucherNumber, "bytes": len(png)}), "storage.image_saved")
	}
	return URLPath(voucherNumber), nil
}

// Read returns the stored image bytes.
func (s *Store) Read(voucherNumber string) ([]byte, error) {
	path, err := s.path(voucherNumber)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether an image is stored for the voucher.
func (s *Store) Exists(voucherNumber string) bool {
	path, err := s.path(voucherNumber)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Ping verifies the directory is still present.
func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// URLPath is the public path that serves a voucher image.
func URLPath(voucherNumber string) string {
	return "/api/voucher/" + voucherNumber + "/image"
}

func (s *Store) path(voucherNumber string) (string, error) {
	if !voucherNumberPattern.MatchString(voucherNumber) {
		return "", fmt.Errorf("invalid voucher number %q", voucherNumber)
	}
	return filepath.Join(s.dir, voucherNumber+".png"), nil
}
