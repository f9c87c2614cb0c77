package storage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"classease_go/config"
	"classease_go/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Service stores uploaded profile images. The default backend writes into the
// local static directory and records a relative path that is rehydrated to an
// absolute URL at serialization time; when S3 is configured, files go to the
// bucket instead and the stored value is already absolute.
type Service struct {
	cfg      *config.Config
	s3Client *s3.S3
}

func NewService(cfg *config.Config) (*Service, error) {
	svc := &Service{cfg: cfg}

	if cfg.UseS3Storage {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretAccessKey,
				"",
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		svc.s3Client = s3.New(sess)
	} else {
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	return svc, nil
}

// UploadProfileImage stores one uploaded image and returns the value to
// persist on the user row.
func (s *Service) UploadProfileImage(file *multipart.FileHeader, userID uint) (string, error) {
	allowed := strings.Split(s.cfg.AllowedExtensions, ",")
	if !utils.IsValidFileExtension(file.Filename, allowed) {
		return "", fmt.Errorf("file extension not allowed: %s", file.Filename)
	}
	if file.Size > s.cfg.MaxFileSize {
		return "", fmt.Errorf("file exceeds maximum size of %d bytes", s.cfg.MaxFileSize)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := fmt.Sprintf("profiles/%d/%s%s", userID, uuid.New().String()[:16], ext)

	if s.s3Client != nil {
		return s.uploadToS3(name, fileBytes, ext)
	}
	return s.uploadToDisk(name, fileBytes)
}

// AbsoluteURL rehydrates a stored image path to an absolute URL. Values that
// are already absolute (the S3 backend) pass through.
func (s *Service) AbsoluteURL(stored string) string {
	if stored == "" || strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + stored
}

func (s *Service) uploadToDisk(name string, data []byte) (string, error) {
	path := filepath.Join(s.cfg.UploadDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	// Served statically from the public directory
	return "/uploads/" + name, nil
}

func (s *Service) uploadToS3(name string, data []byte, ext string) (string, error) {
	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3BucketName),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(ext)),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.cfg.S3BucketName, s.cfg.AWSRegion, name), nil
}

// DeleteFile removes a previously stored file; unknown locations are ignored.
func (s *Service) DeleteFile(stored string) error {
	if stored == "" {
		return nil
	}
	if s.s3Client != nil && strings.Contains(stored, ".amazonaws.com/") {
		parts := strings.SplitN(stored, ".amazonaws.com/", 2)
		_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.S3BucketName),
			Key:    aws.String(parts[1]),
		})
		return err
	}
	if strings.HasPrefix(stored, "/uploads/") {
		path := filepath.Join(s.cfg.UploadDir, filepath.FromSlash(strings.TrimPrefix(stored, "/uploads/")))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func contentType(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
