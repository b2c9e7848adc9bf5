package media

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"gochat/internal/common"
	"gochat/internal/dbmongo"
	"gochat/internal/logger"
)

const defaultMaxUpload = 25 << 20

type HTTPServer struct {
	storage   Storage
	maxUpload int64
}

func NewHTTPServer(storage Storage) *HTTPServer {
	return &HTTPServer{
		storage:   storage,
		maxUpload: defaultMaxUpload,
	}
}

// RegisterRoutes mounts the media endpoints on an authenticated router.
func (s *HTTPServer) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/media", s.uploadFile).Methods(http.MethodPost)
	r.HandleFunc("/media/{fileId}", s.serveFile).Methods(http.MethodGet)
}

func (s *HTTPServer) uploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "Unauthenticated", "authorization required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		common.WriteAppError(r.Context(), w, common.Validationf("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = contentTypeFor(header.Filename)
	}

	stored, err := s.storage.UploadFile(r.Context(), filepath.Base(header.Filename), mimeType, userID, file)
	if err != nil {
		common.WriteAppError(r.Context(), w, err)
		return
	}
	logger.FromContext(r.Context()).Info().Str("storage_ref", stored.ID).Int64("size", stored.Size).Msg("media uploaded")
	common.WriteJSON(w, http.StatusCreated, stored)
}

func (s *HTTPServer) serveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	reader, info, err := s.storage.DownloadFile(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, dbmongo.ErrFileNotFound) || errors.Is(err, dbmongo.ErrInvalidFileID) {
			common.WriteAppError(r.Context(), w, common.ErrNotFound)
			return
		}
		common.WriteAppError(r.Context(), w, err)
		return
	}
	defer reader.Close()

	contentType := info.MimeType
	if contentType == "" {
		contentType = contentTypeFor(info.Filename)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))

	if _, err := io.Copy(w, reader); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Str("storage_ref", fileID).Msg("error streaming file")
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
