package billing

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/validate"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

// DownloadURL returns a presigned link to one file of a dump pack. Only the
// pack's creator and active subscribers may download.
func (s *Server) DownloadURL(ctx context.Context, caller Caller, packID, fileType string) (string, error) {
	switch fileType {
	case "project", "stems", "midi":
	default:
		return "", &ValidationError{Code: "invalid_file_type", Message: "file_type must be one of: project, stems, midi"}
	}
	pack, err := s.store.GetDumpPack(ctx, packID)
	if errors.Is(err, store.ErrNotFound) {
		return "", &NotFoundError{Message: "Dump pack not found"}
	}
	if err != nil {
		return "", err
	}
	c, err := s.creatorByID(ctx, pack.CreatorID)
	if err != nil {
		return "", err
	}
	if c.UserID != caller.UserID {
		ok, err := s.store.HasActiveSubscription(ctx, caller.UserID, c.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &ForbiddenError{Message: "Access denied. Subscribe to download."}
		}
	}

	path := pack.ObjectPath(fileType)
	if path == "" || validate.NoPathTraversal("path", path) != nil {
		return "", &NotFoundError{Message: "File not found"}
	}
	if s.signer == nil {
		return "", &UnavailableError{Code: "storage_not_configured", Message: "Downloads are not configured"}
	}
	url, err := s.signer.PresignGet(ctx, s.opts.DownloadBucket, path, s.opts.DownloadURLTTL)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"dump_pack_id": pack.ID,
		"file_type":    fileType,
	}).Info("download url issued")
	return url, nil
}
