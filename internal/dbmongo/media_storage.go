package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gochat/internal/common"
)

var (
	ErrFileNotFound  = errors.New("media file not found")
	ErrInvalidFileID = errors.New("invalid file ID")
)

// MediaFile describes a stored blob. ID is the storage ref kept on attachments.
type MediaFile struct {
	ID         string               `json:"storage_ref"`
	Filename   string               `json:"file_name"`
	Size       int64                `json:"size_bytes"`
	MimeType   string               `json:"mime_type"`
	FileType   common.MediaFileType `json:"file_type"`
	UploadedBy uint64               `json:"uploaded_by"`
	UploadedAt time.Time            `json:"uploaded_at"`
	CopiedFrom string               `json:"copied_from,omitempty"`
}

type MediaStorage struct {
	gridFS *gridfs.Bucket
}

func NewMediaStorage(mongoClient *MongoClient) *MediaStorage {
	return &MediaStorage{
		gridFS: mongoClient.GridFS,
	}
}

func fileMetadata(f *MediaFile) bson.M {
	md := bson.M{
		"file_type":   f.FileType.String(),
		"mime_type":   f.MimeType,
		"uploaded_by": int64(f.UploadedBy),
		"uploaded_at": f.UploadedAt,
	}
	if f.CopiedFrom != "" {
		md["copied_from"] = f.CopiedFrom
	}
	return md
}

func (ms *MediaStorage) UploadFile(ctx context.Context, filename, mimeType string, uploaderID uint64, content io.Reader) (*MediaFile, error) {
	file := &MediaFile{
		Filename:   filename,
		MimeType:   mimeType,
		FileType:   common.DetectFileType(mimeType),
		UploadedBy: uploaderID,
		UploadedAt: time.Now().UTC(),
	}
	if err := ms.store(ctx, file, content); err != nil {
		return nil, err
	}
	return file, nil
}

func (ms *MediaStorage) store(ctx context.Context, file *MediaFile, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := options.GridFSUpload().SetMetadata(fileMetadata(file))
	stream, err := ms.gridFS.OpenUploadStream(file.Filename, opts)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	size, err := io.Copy(stream, content)
	if err != nil {
		_ = stream.Abort()
		return fmt.Errorf("file copy failed: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("upload finalize failed: %w", err)
	}

	file.ID = stream.FileID.(primitive.ObjectID).Hex()
	file.Size = size
	return nil
}

func parseFileID(fileID string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrInvalidFileID, fileID)
	}
	return objectID, nil
}

// DownloadFile opens the blob; the caller closes the reader.
func (ms *MediaStorage) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *MediaFile, error) {
	objectID, err := parseFileID(fileID)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stream, err := ms.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}

	info := stream.GetFile()
	var metadata bson.M
	if info.Metadata != nil {
		if err := bson.Unmarshal(info.Metadata, &metadata); err != nil {
			metadata = nil
		}
	}
	return stream, mediaFileFrom(fileID, info.Name, info.Length, info.UploadDate, metadata), nil
}

func mediaFileFrom(fileID, name string, length int64, uploadedAt time.Time, metadata bson.M) *MediaFile {
	return &MediaFile{
		ID:         fileID,
		Filename:   name,
		Size:       length,
		MimeType:   getStringFromMap(metadata, "mime_type"),
		FileType:   common.MediaFileType(getStringFromMap(metadata, "file_type")),
		UploadedBy: getUintFromMap(metadata, "uploaded_by"),
		UploadedAt: uploadedAt,
		CopiedFrom: getStringFromMap(metadata, "copied_from"),
	}
}

// FileExists reports whether fileID names a stored blob. A malformed id is
// simply absent.
func (ms *MediaStorage) FileExists(ctx context.Context, fileID string) (bool, error) {
	objectID, err := parseFileID(fileID)
	if err != nil {
		return false, nil
	}
	n, err := ms.gridFS.GetFilesCollection().CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("stat failed: %w", err)
	}
	return n > 0, nil
}

// CopyFile duplicates a blob under a new ref so a forwarded attachment does
// not share storage with its source.
func (ms *MediaStorage) CopyFile(ctx context.Context, fileID string) (string, error) {
	src, info, err := ms.DownloadFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer src.Close()

	clone := &MediaFile{
		Filename:   info.Filename,
		MimeType:   info.MimeType,
		FileType:   info.FileType,
		UploadedBy: info.UploadedBy,
		UploadedAt: time.Now().UTC(),
		CopiedFrom: fileID,
	}
	if err := ms.store(ctx, clone, src); err != nil {
		return "", err
	}
	return clone.ID, nil
}

func (ms *MediaStorage) DeleteFile(ctx context.Context, fileID string) error {
	objectID, err := parseFileID(fileID)
	if err != nil {
		return err
	}
	if err := ms.gridFS.DeleteContext(ctx, objectID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getUintFromMap(m bson.M, key string) uint64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int64:
		if v > 0 {
			return uint64(v)
		}
	case int32:
		if v > 0 {
			return uint64(v)
		}
	}
	return 0
}
