// Package storage is the media storage provider: it accepts uploaded bytes
// and returns a publicly resolvable URL.
package storage

import (
	"context"
	"errors"

	"github.com/blondeglamazon/message-board-sub000/internal/models"
)

// UploadInput is a single media file from a client.
type UploadInput struct {
	OwnerID     uint
	Filename    string
	ContentType string
	Content     []byte
}

// Object is a stored media file.
type Object struct {
	Key         string          `json:"key"`
	URL         string          `json:"url"`
	Kind        models.PostType `json:"kind"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Width       int             `json:"width,omitempty"`
	Height      int             `json:"height,omitempty"`
}

// Provider stores media and removes it again.
type Provider interface {
	Upload(ctx context.Context, in UploadInput) (*Object, error)
	Delete(ctx context.Context, key string) error
}

var ErrInvalidKey = errors.New("invalid object key")
