package common

import "strings"

// MediaFileType is the coarse attachment category derived from its MIME type.
type MediaFileType string

const (
	MediaFileTypeImage MediaFileType = "image"
	MediaFileTypeVideo MediaFileType = "video"
	MediaFileTypeAudio MediaFileType = "audio"
	MediaFileTypeFile  MediaFileType = "file"
)

func (mft MediaFileType) String() string {
	return string(mft)
}

func (mft MediaFileType) IsValid() bool {
	switch mft {
	case MediaFileTypeImage, MediaFileTypeVideo, MediaFileTypeAudio, MediaFileTypeFile:
		return true
	}
	return false
}

func DetectFileType(mimeType string) MediaFileType {
	lowerMimeType := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(lowerMimeType, "image/"):
		return MediaFileTypeImage
	case strings.HasPrefix(lowerMimeType, "video/"):
		return MediaFileTypeVideo
	case strings.HasPrefix(lowerMimeType, "audio/"):
		return MediaFileTypeAudio
	}
	return MediaFileTypeFile
}
