package services

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	sc "github.com/ssergeev/studysync/internal/server/config"
	"github.com/ssergeev/studysync/internal/server/models"
	"github.com/ssergeev/studysync/internal/server/repositories/repomanager"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Indirections over the AWS SDK so tests can run without credentials or a
// reachable endpoint.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// devPlaceholderURL is returned instead of a presigned URL when object
// storage is disabled (offline development).
const devPlaceholderURL = "http://localhost/dev-no-storage"

// UploadGrant is a time-limited authorization to PUT a file directly to
// object storage, bypassing the API server for the payload.
type UploadGrant struct {
	UploadURL       string
	StorageKey      string
	RequiredHeaders map[string]string
}

// ConfirmInput reports a completed direct upload. SizeBytes is
// client-reported and not verified against the stored object.
// TODO: verify the reported size with a HeadObject on the key.
type ConfirmInput struct {
	StorageKey string
	Filename   string
	ChapterID  string
	SessionID  string
	SizeBytes  int64
}

// FileItem is a listed submission with a resolved download location.
type FileItem struct {
	File        *models.SubmittedFile
	DownloadURL string
}

// FileList is the user's submissions plus current quota usage.
type FileList struct {
	Files      []*FileItem
	QuotaUsed  int64
	QuotaLimit int64
}

// UploadService issues quota-gated upload grants and records confirmed
// uploads.
type UploadService struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	config *sc.Config
}

func NewUploadService(db *sql.DB, rm repomanager.RepositoryManager, config *sc.Config) *UploadService {
	return &UploadService{db: db, rm: rm, config: config}
}

// StorageKey derives the deterministic object key for a submission, so
// repeated submissions of the same filename overwrite rather than
// accumulate.
func StorageKey(userID, chapterID, filename string) string {
	return fmt.Sprintf("user/%s/workspace/%s/%s", userID, chapterID, filename)
}

// ValidateFilename rejects empty names and anything that is not a bare base
// name (path separators, traversal).
func ValidateFilename(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: filename is required", common.ErrorValidation)
	}
	if trimmed != path.Base(trimmed) || strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("%w: invalid filename", common.ErrorValidation)
	}
	return nil
}

func (s *UploadService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

func (s *UploadService) presignedPutURL(ctx context.Context, key, contentType string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.config.UploadGrantTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

func (s *UploadService) presignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.UploadGrantTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// RequestGrant checks the quota and issues a time-limited direct-write
// target. The check is read-then-issue with no reservation: two concurrent
// grants can both pass and jointly exceed the quota. The confirm path
// re-checks under a per-user lock, so stored bytes stay within the limit.
func (s *UploadService) RequestGrant(ctx context.Context, userID, chapterID, filename string, sizeBytes int64) (*UploadGrant, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("%w: file size must be positive", common.ErrorValidation)
	}

	fileRepo := s.rm.Files(s.db)
	used, err := fileRepo.SumSizeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A re-submission replaces the stored row, so its current size leaves
	// the quota when the new one enters.
	prev, err := fileRepo.SizeOf(ctx, userID, chapterID, filename)
	if err != nil {
		return nil, err
	}
	if used-prev+sizeBytes > s.config.UserQuotaBytes {
		return nil, &common.QuotaExceededError{UsedBytes: used, LimitBytes: s.config.UserQuotaBytes}
	}

	key := StorageKey(userID, chapterID, filename)

	if !s.config.S3Enabled {
		return &UploadGrant{
			UploadURL:       devPlaceholderURL,
			StorageKey:      key,
			RequiredHeaders: map[string]string{},
		}, nil
	}

	headers := map[string]string{"Content-Type": "application/octet-stream"}
	url, err := s.presignedPutURL(ctx, key, headers["Content-Type"])
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}

	return &UploadGrant{UploadURL: url, StorageKey: key, RequiredHeaders: headers}, nil
}

// ConfirmUpload records the submission after the device finished the direct
// PUT. The storage key must belong to the caller; the quota is re-checked
// inside a transaction serialized per user.
func (s *UploadService) ConfirmUpload(ctx context.Context, userID string, in ConfirmInput) (used, limit int64, err error) {
	if err := ValidateFilename(in.Filename); err != nil {
		return 0, 0, err
	}
	if in.SizeBytes <= 0 {
		return 0, 0, fmt.Errorf("%w: file size must be positive", common.ErrorValidation)
	}

	expectedPrefix := fmt.Sprintf("user/%s/workspace/%s/", userID, in.ChapterID)
	if !strings.HasPrefix(in.StorageKey, expectedPrefix) {
		return 0, 0, fmt.Errorf("%w: storage key does not match user/chapter", common.ErrorValidation)
	}

	limit = s.config.UserQuotaBytes

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := s.rm.Files(tx)

		if err := fileRepo.LockUser(ctx, userID); err != nil {
			return err
		}

		cur, err := fileRepo.SumSizeByUser(ctx, userID)
		if err != nil {
			return err
		}
		// Upsert replaces a prior submission of the same filename; discount
		// the row being replaced from both the check and the reported usage.
		prev, err := fileRepo.SizeOf(ctx, userID, in.ChapterID, in.Filename)
		if err != nil {
			return err
		}
		if cur-prev+in.SizeBytes > limit {
			return &common.QuotaExceededError{UsedBytes: cur, LimitBytes: limit}
		}

		used = cur - prev + in.SizeBytes

		return fileRepo.Upsert(ctx, &models.SubmittedFile{
			UserID:     userID,
			SessionID:  in.SessionID,
			ChapterID:  in.ChapterID,
			Filename:   in.Filename,
			StorageKey: in.StorageKey,
			SizeBytes:  in.SizeBytes,
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return used, limit, nil
}

// ListFiles returns the user's submissions, newest first, with presigned
// download URLs when storage is enabled.
func (s *UploadService) ListFiles(ctx context.Context, userID string) (*FileList, error) {
	fileRepo := s.rm.Files(s.db)

	rows, err := fileRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*FileItem, 0, len(rows))
	for _, f := range rows {
		item := &FileItem{File: f}
		if s.config.S3Enabled {
			url, err := s.presignedGetURL(ctx, f.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("error presigning download: %w", err)
			}
			item.DownloadURL = url
		}
		items = append(items, item)
	}

	used, err := fileRepo.SumSizeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &FileList{Files: items, QuotaUsed: used, QuotaLimit: s.config.UserQuotaBytes}, nil
}
