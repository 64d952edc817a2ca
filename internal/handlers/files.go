package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/snappy-loop/charstudio/internal/models"
)

// UploadImage handles POST /v1/sessions/{id}/image.
// Accepts multipart/form-data (field name: file) or JSON {"image": "<data uri or base64>"}.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err = h.readMultipartImage(w, r)
	} else {
		data, err = h.readJSONImage(w, r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file size exceeds maximum of %d bytes", h.maxFileSize))
		case errors.Is(err, errReadUpload):
			log.Error().Err(err).Msg("Failed to read upload")
			writeJSONError(w, http.StatusInternalServerError, "failed to read file")
		default:
			writeJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if int64(len(data)) > h.maxFileSize {
		writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	img, err := models.InspectUpload(data)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := sess.Upload(img.ImagePayload)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	log.Info().
		Str("session_id", snap.ID).
		Str("mime_type", img.MIMEType).
		Int("size", len(img.Data)).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("Image uploaded")

	writeJSON(w, http.StatusOK, snap)
}

var errReadUpload = errors.New("failed to read upload")

func (h *Handler) readMultipartImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	const multipartOverhead = 1 << 20
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	const maxMemory = 32 << 20 // 32MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("failed to parse multipart form")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, models.ErrEmptyUpload
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errReadUpload, err)
	}
	return data, nil
}

func (h *Handler) readJSONImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	// base64 grows data by 4/3; allow for the data URI header and JSON framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize/3*4+4096)

	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("invalid request body")
	}
	if req.Image == "" {
		return nil, models.ErrEmptyUpload
	}

	payload, err := models.ParseImagePayload(req.Image)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}
