package flows

import (
	"context"
	"errors"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// Profile loads the profile of id.
func (o *Orchestrator) Profile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := o.profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			return nil, &Error{Kind: KindNotFound, Message: "User data not found in database", Err: err}
		}
		o.log.Error(ctx, "profile read failed", "user_id", id, "error", err)
		return nil, &Error{Kind: KindDirectory, Message: "Failed to load profile: " + err.Error(), Err: err}
	}
	if p.AvatarURL == "" {
		p.AvatarURL = o.defaultAvatar
	}
	return p, nil
}

// UpdateAvatar uploads a new profile image and rewrites the whole profile.
func (o *Orchestrator) UpdateAvatar(ctx context.Context, id string, image []byte) (*models.Profile, error) {
	if len(image) == 0 {
		return nil, validation("avatar", "Please select an image")
	}
	if o.media == nil {
		return nil, &Error{Kind: KindOther, Message: "Image uploads are not configured"}
	}

	p, err := o.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := o.media.Upload(ctx, image, services.AvatarPath(id))
	if err != nil {
		o.log.Warn(ctx, "avatar upload failed", "user_id", id, "error", err)
		o.metrics.Flow("update_avatar", "upload_error")
		return nil, &Error{Kind: KindOther, Message: "Failed to upload image", Err: err}
	}

	updated := *p
	updated.AvatarURL = url
	if err := o.profiles.Put(ctx, &updated); err != nil {
		o.log.Error(ctx, "profile write failed", "user_id", id, "error", err)
		o.metrics.Flow("update_avatar", "directory_error")
		return nil, &Error{Kind: KindDirectory, Message: "Failed to save user data", Err: err}
	}
	o.metrics.Flow("update_avatar", "ok")
	return &updated, nil
}
