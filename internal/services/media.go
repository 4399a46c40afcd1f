package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// AvatarFolder is the object storage folder holding profile images.
const AvatarFolder = "profile_images"

// AvatarPath is the destination of userID's profile image.
func AvatarPath(userID string) string {
	return AvatarFolder + "/" + userID
}

// MediaStore uploads images to Cloudinary using an unsigned upload preset.
type MediaStore struct {
	cld    *cloudinary.Cloudinary
	preset string
}

func NewMediaStore(cloudName, apiKey, apiSecret, preset string) (*MediaStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &MediaStore{
		cld:    cld,
		preset: preset,
	}, nil
}

// Upload stores image at path and returns its public URL. Cancelling ctx aborts
// the request.
func (s *MediaStore) Upload(ctx context.Context, image []byte, path string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("image is empty")
	}

	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(image), uploader.UploadParams{
		PublicID:     path,
		UploadPreset: s.preset,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no URL")
	}

	return result.SecureURL, nil
}
