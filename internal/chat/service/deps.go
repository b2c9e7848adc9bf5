package service

import (
	"context"

	"gochat/internal/fanout"
)

//go:generate mockgen -source=deps.go -destination=mocks/deps.go -package=mocks

// Notifier receives events after the writes they describe have committed.
type Notifier interface {
	Notify(ctx context.Context, event fanout.Event)
}

// BlobStore checks, copies and removes attachment blobs.
type BlobStore interface {
	FileExists(ctx context.Context, fileID string) (bool, error)
	CopyFile(ctx context.Context, fileID string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// BodyCipher seals message bodies at rest.
type BodyCipher interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// UserDirectory resolves the display handle used in forward labels.
type UserDirectory interface {
	Handle(ctx context.Context, userID uint64) (string, error)
}
