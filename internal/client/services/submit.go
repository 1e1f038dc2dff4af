package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/logging"
	"github.com/ssergeev/studysync/internal/netx"
)

// Submitter pushes workspace files through the grant → direct PUT → confirm
// flow. Unlike turn sync this is synchronous: the learner asked for it and
// wants to know it landed.
type Submitter struct {
	api    api.Client
	logger logging.Logger
}

func NewSubmitter(client api.Client, l logging.Logger) *Submitter {
	return &Submitter{api: client, logger: l.With("module", "submitter")}
}

// Submit uploads the file at path into the chapter's workspace and returns
// the quota usage after confirmation. Quota rejections come back as
// *common.QuotaExceededError with the display numbers.
func (s *Submitter) Submit(ctx context.Context, chapterID, sessionID, path string) (*api.QuotaUsage, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	filename := filepath.Base(path)
	size := int64(len(payload))

	grant, err := s.api.RequestUploadGrant(ctx, chapterID, filename, size)
	if err != nil {
		return nil, err
	}

	if err := netx.UploadToPresignedURL(ctx, grant.UploadURL, payload, grant.RequiredHeaders); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	usage, err := s.api.ConfirmUpload(ctx, api.ConfirmUpload{
		StorageKey:    grant.StorageKey,
		Filename:      filename,
		ChapterID:     chapterID,
		FileSizeBytes: size,
		SessionID:     sessionID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file submitted",
		"filename", filename, "size_bytes", size, "quota_used", usage.UsedBytes)

	return usage, nil
}
