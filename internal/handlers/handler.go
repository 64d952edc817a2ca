package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/snappy-loop/charstudio/internal/models"
	"github.com/snappy-loop/charstudio/internal/studio"
)

// Handler contains all HTTP handlers
type Handler struct {
	store       *studio.Store
	maxFileSize int64
}

// NewHandler creates a new handler
func NewHandler(store *studio.Store, maxFileSize int64) *Handler {
	return &Handler{
		store:       store,
		maxFileSize: maxFileSize,
	}
}

// Register adds the page and /v1 API routes to r.
func (h *Handler) Register(r *mux.Router) *mux.Router {
	r.HandleFunc("/", h.Index).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/image", h.UploadImage).Methods("POST")
	api.HandleFunc("/sessions/{id}/age", h.SelectAge).Methods("PUT")
	api.HandleFunc("/sessions/{id}/generate", h.Generate).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", h.ResetView).Methods("POST")
	api.HandleFunc("/sessions/{id}/download", h.Download).Methods("GET")
	api.HandleFunc("/sessions/{id}/images/{kind}", h.GetImage).Methods("GET")
	api.HandleFunc("/sessions/{id}/ws", h.SessionWS).Methods("GET")
	return api
}

// Index serves the studio page at GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		AgeGroups   []models.AgeGroup
		DefaultAge  models.AgeGroup
		MaxFileSize int64
	}{
		AgeGroups:   models.AgeGroups,
		DefaultAge:  models.DefaultAgeGroup,
		MaxFileSize: h.maxFileSize,
	}
	if err := executeTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("Failed to render index")
	}
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SelectAge handles PUT /v1/sessions/{id}/age
func (h *Handler) SelectAge(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		AgeGroup string `json:"age_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	age, err := models.ParseAgeGroup(req.AgeGroup)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := sess.SelectAge(age)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Generate handles POST /v1/sessions/{id}/generate. The result is delivered
// through GET /v1/sessions/{id} or the websocket.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	snap, err := sess.Generate()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// ResetView handles POST /v1/sessions/{id}/reset
func (h *Handler) ResetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.ResetView())
}

// Download handles GET /v1/sessions/{id}/download. Responds 204 when there is
// no generated image.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	artifact, ok := sess.Download()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	writeImage(w, artifact.MIMEType, artifact.Data)
}

// GetImage handles GET /v1/sessions/{id}/images/{original|generated}
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	switch mux.Vars(r)["kind"] {
	case "original":
		img, ok := sess.OriginalImage()
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no image uploaded")
			return
		}
		writeImage(w, img.MIMEType, img.Data)
	case "generated":
		artifact, ok := sess.Download()
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no generated image")
			return
		}
		writeImage(w, artifact.MIMEType, artifact.Data)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown image kind")
	}
}

// session resolves the {id} route variable to a live session, writing the error response otherwise.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	sess, err := h.store.Get(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrNoImage):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, studio.ErrGenerationInProgress):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, studio.ErrSessionClosed):
		writeJSONError(w, http.StatusNotFound, "session not found")
	default:
		log.Error().Err(err).Msg("Session action failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeImage(w http.ResponseWriter, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Debug().Err(err).Msg("Failed to write image response")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
