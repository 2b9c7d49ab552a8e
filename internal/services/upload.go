package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

const DefaultUploadMaxBytes int64 = 100 << 20

// UploadStore is the part of the asset bucket direct uploads write through.
type UploadStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (*gcp.UploadedObject, error)
}

type UploadedFile struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type UploadService struct {
	log      *logger.Logger
	store    UploadStore
	maxBytes int64
}

func NewUploadService(baseLog *logger.Logger, store UploadStore, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &UploadService{
		log:      baseLog.With("service", "UploadService"),
		store:    store,
		maxBytes: maxBytes,
	}
}

// MaxBytes is the largest upload body the service accepts.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload stores a caller-supplied file under uploads/{user}/ with a random
// prefix so repeated names never collide.
func (s *UploadService) Upload(ctx context.Context, userID, filename string, r io.Reader, declaredType string) (*UploadedFile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}
	name := uploadBaseName(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: filename required", domain.ErrValidation)
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := uploadContentType(head, declaredType)

	key := UploadKey(userID, uuid.New().String()+"-"+name)
	obj, err := s.store.Upload(ctx, key, io.MultiReader(bytes.NewReader(head), r), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	out := &UploadedFile{
		Message:     "File uploaded successfully",
		Filename:    name,
		StoragePath: key,
		ContentType: contentType,
	}
	if obj != nil {
		out.Size = obj.Size
		if obj.Key != "" {
			out.StoragePath = obj.Key
		}
	}
	s.log.Info("File uploaded", "user_id", userID, "storage_path", out.StoragePath, "bytes", out.Size)
	return out, nil
}

// UploadKey scopes a direct upload to its owner.
func UploadKey(userID, name string) string {
	return path.Join("uploads", userID, name)
}

func uploadBaseName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

// uploadContentType trusts a specific declared type and sniffs otherwise.
func uploadContentType(head []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	return mimetype.Detect(head).String()
}
