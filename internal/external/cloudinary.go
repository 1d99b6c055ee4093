// Package external adapts the third-party services the clinic depends on:
// blob storage, the medication assistant model and outbound email.
package external

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sirupsen/logrus"

	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

// uploadAPI is the part of the cloudinary upload API the store uses
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore keeps patient documents and voice notes in Cloudinary
type CloudinaryStore struct {
	api            uploadAPI
	documentFolder string
	audioFolder    string
	log            *logrus.Entry
}

// NewCloudinaryStore creates a store from the cloudinary config section
func NewCloudinaryStore(cfg config.CloudinaryConfig, log *logger.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return newCloudinaryStore(&cld.Upload, cfg, log), nil
}

func newCloudinaryStore(api uploadAPI, cfg config.CloudinaryConfig, log *logger.Logger) *CloudinaryStore {
	return &CloudinaryStore{
		api:            api,
		documentFolder: cfg.DocumentFolder,
		audioFolder:    cfg.AudioFolder,
		log:            log.WithComponent("cloudinary"),
	}
}

// placement returns the folder and resource type for kind. Audio is stored
// as "video", which is how Cloudinary classifies sound files.
func (s *CloudinaryStore) placement(kind types.BlobKind) (folder, resourceType string, err error) {
	switch kind {
	case types.BlobDocument:
		return s.documentFolder, "auto", nil
	case types.BlobAudio:
		return s.audioFolder, "video", nil
	}
	return "", "", fmt.Errorf("unknown blob kind %q", kind)
}

// Upload streams r to Cloudinary
func (s *CloudinaryStore) Upload(ctx context.Context, kind types.BlobKind, r io.Reader) (*types.BlobUploadResult, error) {
	folder, resourceType, err := s.placement(kind)
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, err.Error(), nil)
	}

	resp, err := s.api.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		ResourceType: resourceType,
	})
	if err != nil {
		return nil, types.NewExternalError(types.ErrCodeExternalError, "upload failed", err)
	}
	if resp.Error.Message != "" {
		return nil, types.NewExternalError(types.ErrCodeExternalError, "upload failed", fmt.Errorf("%s", resp.Error.Message))
	}

	s.log.WithFields(logrus.Fields{
		"public_id":     resp.PublicID,
		"resource_type": resp.ResourceType,
		"bytes":         resp.Bytes,
	}).Info("Blob uploaded")

	return &types.BlobUploadResult{
		URL:          resp.SecureURL,
		PublicID:     resp.PublicID,
		Format:       resp.Format,
		ResourceType: resp.ResourceType,
		CreatedAt:    resp.CreatedAt,
	}, nil
}

// Destroy removes a stored blob. An already missing blob is not an error.
func (s *CloudinaryStore) Destroy(ctx context.Context, publicID, resourceType string) error {
	resp, err := s.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return types.NewExternalError(types.ErrCodeExternalError, "destroy failed", err)
	}
	if resp.Error.Message != "" {
		return types.NewExternalError(types.ErrCodeExternalError, "destroy failed", fmt.Errorf("%s", resp.Error.Message))
	}

	s.log.WithFields(logrus.Fields{"public_id": publicID, "result": resp.Result}).Info("Blob destroyed")
	return nil
}
