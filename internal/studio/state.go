// Package studio holds the UI state of one character-generation session and
// the pure transitions applied to it by user actions and settled results.
package studio

import (
	"errors"
	"fmt"

	"github.com/snappy-loop/charstudio/internal/models"
)

// Status is the generation status shown by the UI.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// View is the screen shown on narrow layouts.
type View string

const (
	ViewSetup  View = "setup"
	ViewResult View = "result"
)

// GenericFailureMessage is shown when a failure carries no message of its own.
const GenericFailureMessage = "failed to generate character"

var (
	// ErrNoImage rejects a generate action before any photo was uploaded.
	ErrNoImage = errors.New("please upload an image first")
	// ErrGenerationInProgress rejects a generate action while one is in flight.
	ErrGenerationInProgress = errors.New("generation already in progress")
)

// State is the UI state record.
//
// GeneratedImage is non-nil only when Status is StatusSuccess, and Error is
// non-empty only when Status is StatusError.
type State struct {
	OriginalImage  *models.ImagePayload
	GeneratedImage *models.ImagePayload
	AgeGroup       models.AgeGroup
	Status         Status
	Error          string
	View           View

	// Token identifies the latest request; results carrying an older token are dropped.
	Token uint64
}

// Ticket is an accepted generate action.
type Ticket struct {
	Token    uint64
	Image    models.ImagePayload
	AgeGroup models.AgeGroup
}

// Outcome is the settled result of the request identified by Token.
type Outcome struct {
	Token uint64
	Image *models.ImagePayload
	Err   error
}

// Artifact is a downloadable generated image.
type Artifact struct {
	Filename string
	MIMEType string
	Data     []byte
}

// NewState returns the initial state.
func NewState() State {
	return State{
		AgeGroup: models.DefaultAgeGroup,
		Status:   StatusIdle,
		View:     ViewSetup,
	}
}

// Upload replaces the original photo and invalidates any in-flight request.
func (s State) Upload(img models.ImagePayload) State {
	s.OriginalImage = &img
	s.GeneratedImage = nil
	s.Status = StatusIdle
	s.Error = ""
	s.View = ViewSetup
	s.Token++
	return s
}

// SelectAge changes only the age group.
func (s State) SelectAge(age models.AgeGroup) State {
	s.AgeGroup = age
	return s
}

// Begin starts a generation. The returned state is unchanged on error.
func (s State) Begin() (State, Ticket, error) {
	if s.OriginalImage == nil {
		return s, Ticket{}, ErrNoImage
	}
	if s.Status == StatusLoading {
		return s, Ticket{}, ErrGenerationInProgress
	}

	s.Token++
	s.Status = StatusLoading
	s.Error = ""
	s.GeneratedImage = nil
	s.View = ViewResult

	return s, Ticket{
		Token:    s.Token,
		Image:    *s.OriginalImage,
		AgeGroup: s.AgeGroup,
	}, nil
}

// Apply settles the in-flight request. It reports false and leaves the state
// untouched when the outcome belongs to a superseded request.
func (s State) Apply(o Outcome) (State, bool) {
	if o.Token != s.Token || s.Status != StatusLoading {
		return s, false
	}

	if o.Err == nil && o.Image == nil {
		o.Err = errors.New(GenericFailureMessage)
	}
	if o.Err != nil {
		s.Status = StatusError
		s.Error = FailureMessage(o.Err)
		s.View = ViewSetup
		return s, true
	}

	s.Status = StatusSuccess
	s.GeneratedImage = o.Image
	s.Error = ""
	return s, true
}

// ResetView returns to the setup screen without touching anything else.
func (s State) ResetView() State {
	s.View = ViewSetup
	return s
}

// Download exports the generated image. ok is false when there is nothing to export.
func (s State) Download() (Artifact, bool) {
	if s.GeneratedImage == nil || len(s.GeneratedImage.Data) == 0 {
		return Artifact{}, false
	}
	return Artifact{
		Filename: fmt.Sprintf("my-3d-character-%s%s", s.AgeGroup, s.GeneratedImage.Extension()),
		MIMEType: s.GeneratedImage.MIMEType,
		Data:     s.GeneratedImage.Data,
	}, true
}

// FailureMessage derives the user-facing message for a failed generation.
func FailureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return GenericFailureMessage
	}
	return err.Error()
}
