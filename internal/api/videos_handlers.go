package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"vodforge/internal/media"
	"vodforge/internal/models"
	"vodforge/internal/storage"
)

type videoResponse struct {
	ID              string                       `json:"id"`
	Title           string                       `json:"title"`
	Description     string                       `json:"description,omitempty"`
	Filename        string                       `json:"filename"`
	SizeBytes       int64                        `json:"sizeBytes"`
	ContentType     string                       `json:"contentType"`
	DurationSeconds int                          `json:"durationSeconds"`
	Status          string                       `json:"status"`
	Renditions      []models.RenditionDescriptor `json:"renditions"`
	PlaybackURL     string                       `json:"playbackUrl,omitempty"`
	StreamBase      string                       `json:"streamBase,omitempty"`
	CreatedAt       string                       `json:"createdAt"`
}

func newVideoResponse(asset models.VideoAsset) videoResponse {
	resp := videoResponse{
		ID:              asset.ID,
		Title:           asset.Title,
		Description:     asset.Description,
		Filename:        asset.Filename,
		SizeBytes:       asset.SizeBytes,
		ContentType:     asset.ContentType,
		DurationSeconds: asset.DurationSeconds,
		Status:          asset.Status,
		Renditions:      asset.Renditions,
		CreatedAt:       asset.CreatedAt.Format(time.RFC3339Nano),
	}
	if asset.Status == models.AssetStatusReady {
		resp.StreamBase = "/streams/" + asset.ID
		resp.PlaybackURL = fmt.Sprintf("/streams/%s/%s", asset.ID, media.MasterManifestName)
	}
	return resp
}

type uploadedMedia struct {
	tempPath    string
	size        int64
	filename    string
	contentType string
}

// Videos lists catalog entries and accepts new multipart uploads.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assets, err := h.Store.ListAssets(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		response := make([]videoResponse, 0, len(assets))
		for _, asset := range assets {
			response = append(response, newVideoResponse(asset))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		h.createVideo(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
	}
}

// VideoByID serves single-asset reads and deletions.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/videos/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("video not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		asset, err := h.Store.GetAsset(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(asset))
	case http.MethodDelete:
		if err := h.Pipeline.Delete(r.Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
	}
}

func (h *Handler) createVideo(w http.ResponseWriter, r *http.Request) {
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("multipart/form-data payload required"))
		return
	}

	// The body cap leaves headroom over the media ceiling so that an
	// oversized file reaches the pipeline's own check and maps to 413
	// instead of a connection reset.
	r.Body = http.MaxBytesReader(w, r.Body, h.Pipeline.MaxUploadBytes()+(1<<20))

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart payload"))
		return
	}

	var (
		title       string
		description string
		mediaPart   *uploadedMedia
	)
	cleanupTemp := func() {
		if mediaPart != nil {
			_ = os.Remove(mediaPart.tempPath)
		}
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanupTemp()
			if oversizeErr := oversizedBodyError(err, h.Pipeline.MaxUploadBytes()); oversizeErr != nil {
				writeError(w, statusForPipelineError(oversizeErr), oversizeErr)
				return
			}
			writeError(w, http.StatusBadRequest, fmt.Errorf("read multipart data: %w", err))
			return
		}
		switch part.FormName() {
		case "title":
			title = readFormValue(part)
		case "description":
			description = readFormValue(part)
		case "file":
			if mediaPart != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := h.saveMultipartFile(part)
			if saveErr != nil {
				cleanupTemp()
				if oversizeErr := oversizedBodyError(saveErr, h.Pipeline.MaxUploadBytes()); oversizeErr != nil {
					writeError(w, statusForPipelineError(oversizeErr), oversizeErr)
					return
				}
				writeError(w, http.StatusBadRequest, saveErr)
				return
			}
			mediaPart = saved
		default:
			_ = part.Close()
		}
	}

	if mediaPart == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file field is required"))
		return
	}

	// Reject before any asset directory exists so an invalid upload leaves
	// nothing behind but the temp file we remove here.
	if err := h.Pipeline.ValidateSource(mediaPart.contentType, mediaPart.size); err != nil {
		cleanupTemp()
		writeError(w, statusForPipelineError(err), err)
		return
	}

	asset, err := h.Pipeline.Process(r.Context(), media.SourceUpload{
		TempPath:    mediaPart.tempPath,
		SizeBytes:   mediaPart.size,
		ContentType: mediaPart.contentType,
		Filename:    mediaPart.filename,
		Title:       title,
		Description: description,
	})
	if err != nil {
		writeError(w, statusForPipelineError(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, newVideoResponse(asset))
}

func (h *Handler) saveMultipartFile(part *multipart.Part) (*uploadedMedia, error) {
	defer part.Close()
	tmp, err := os.CreateTemp(h.Pipeline.UploadsRoot(), "pending-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()
	written, err := io.Copy(tmp, part)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return &uploadedMedia{
		tempPath:    tmp.Name(),
		size:        written,
		filename:    part.FileName(),
		contentType: part.Header.Get("Content-Type"),
	}, nil
}

func readFormValue(part *multipart.Part) string {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, 64<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// oversizedBodyError translates the MaxBytesReader trip into the oversized
// input rejection, so files that blow past the body cap entirely still map to
// 413 like files the size check catches.
func oversizedBodyError(err error, limit int64) error {
	var maxBytesErr *http.MaxBytesError
	if !errors.As(err, &maxBytesErr) {
		return nil
	}
	return &media.InputError{
		Reason:    fmt.Sprintf("file size exceeds limit %d", limit),
		Oversized: true,
	}
}

func statusForPipelineError(err error) int {
	var inputErr *media.InputError
	if errors.As(err, &inputErr) {
		if inputErr.Oversized {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	}
	if media.IsEncodeTimeout(err) {
		return http.StatusRequestTimeout
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func errMethodNotAllowed(method string) error {
	return fmt.Errorf("method %s not allowed", method)
}
