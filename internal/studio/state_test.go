package studio

import (
	"errors"
	"testing"

	"github.com/snappy-loop/charstudio/internal/models"
)

var (
	testPhoto     = models.ImagePayload{Data: []byte("photo"), MIMEType: "image/jpeg"}
	testCharacter = &models.ImagePayload{Data: []byte("character"), MIMEType: models.OutputImageMIMEType}
)

// checkInvariants asserts the field/status coupling of State.
func checkInvariants(t *testing.T, s State) {
	t.Helper()
	if s.GeneratedImage != nil && s.Status != StatusSuccess {
		t.Errorf("generated image set with status %s", s.Status)
	}
	if s.Error != "" && s.Status != StatusError {
		t.Errorf("error %q set with status %s", s.Error, s.Status)
	}
}

func TestNewState(t *testing.T) {
	s := NewState()
	if s.Status != StatusIdle || s.View != ViewSetup || s.AgeGroup != models.AgeChild {
		t.Errorf("unexpected initial state: %+v", s)
	}
	checkInvariants(t, s)
}

func TestUpload_SetsImageAndIdle(t *testing.T) {
	starts := map[string]State{
		"initial": NewState(),
		"success": {Status: StatusSuccess, GeneratedImage: testCharacter, OriginalImage: &testPhoto, View: ViewResult},
		"error":   {Status: StatusError, Error: "boom", OriginalImage: &testPhoto},
		"loading": {Status: StatusLoading, OriginalImage: &testPhoto, Token: 4},
	}
	for name, start := range starts {
		t.Run(name, func(t *testing.T) {
			s := start.Upload(testPhoto)
			if s.OriginalImage == nil || string(s.OriginalImage.Data) != "photo" {
				t.Errorf("original image not set: %+v", s.OriginalImage)
			}
			if s.Status != StatusIdle {
				t.Errorf("status = %s, want idle", s.Status)
			}
			if s.GeneratedImage != nil || s.Error != "" {
				t.Errorf("stale result kept: %+v", s)
			}
			if s.Token <= start.Token {
				t.Errorf("token not bumped: %d -> %d", start.Token, s.Token)
			}
			checkInvariants(t, s)
		})
	}
}

func TestSelectAge_TouchesOnlyAgeGroup(t *testing.T) {
	start := State{
		OriginalImage:  &testPhoto,
		GeneratedImage: testCharacter,
		AgeGroup:       models.AgeChild,
		Status:         StatusSuccess,
		View:           ViewResult,
		Token:          7,
	}
	for _, age := range models.AgeGroups {
		s := start.SelectAge(age)
		want := start
		want.AgeGroup = age
		if s != want {
			t.Errorf("SelectAge(%s) = %+v, want %+v", age, s, want)
		}
	}
}

func TestBegin_WithoutImageRejected(t *testing.T) {
	start := NewState()
	s, ticket, err := start.Begin()
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
	if s != start {
		t.Errorf("state changed: %+v", s)
	}
	if ticket.Token != 0 || ticket.Image.Data != nil {
		t.Errorf("ticket issued: %+v", ticket)
	}
}

func TestBegin_WhileLoadingRejected(t *testing.T) {
	start, _, err := NewState().Upload(testPhoto).Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	s, _, err := start.Begin()
	if !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("err = %v, want ErrGenerationInProgress", err)
	}
	if s.Token != start.Token || s.Status != StatusLoading {
		t.Errorf("state changed: %+v", s)
	}
}

func TestBegin_TransitionsToLoading(t *testing.T) {
	start := NewState().Upload(testPhoto).SelectAge(models.AgeSenior)
	start.Status = StatusError
	start.Error = "previous failure"

	s, ticket, err := start.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusLoading || s.Error != "" || s.View != ViewResult {
		t.Errorf("unexpected state: %+v", s)
	}
	if ticket.Token != s.Token || ticket.AgeGroup != models.AgeSenior || string(ticket.Image.Data) != "photo" {
		t.Errorf("unexpected ticket: %+v", ticket)
	}
	checkInvariants(t, s)
}

func TestApply_Success(t *testing.T) {
	loading, ticket, _ := NewState().Upload(testPhoto).Begin()

	s, ok := loading.Apply(Outcome{Token: ticket.Token, Image: testCharacter})
	if !ok {
		t.Fatal("outcome not applied")
	}
	if s.Status != StatusSuccess || s.GeneratedImage != testCharacter || s.Error != "" {
		t.Errorf("unexpected state: %+v", s)
	}
	checkInvariants(t, s)
}

func TestApply_Failure(t *testing.T) {
	loading, ticket, _ := NewState().Upload(testPhoto).Begin()

	tests := []struct {
		name    string
		outcome Outcome
		wantMsg string
	}{
		{"service error", Outcome{Token: ticket.Token, Err: errors.New("no image generated")}, "no image generated"},
		{"empty message", Outcome{Token: ticket.Token, Err: errors.New("")}, GenericFailureMessage},
		{"no image and no error", Outcome{Token: ticket.Token}, GenericFailureMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := loading.Apply(tt.outcome)
			if !ok {
				t.Fatal("outcome not applied")
			}
			if s.Status != StatusError || s.Error != tt.wantMsg {
				t.Errorf("status=%s error=%q, want error %q", s.Status, s.Error, tt.wantMsg)
			}
			if s.GeneratedImage != loading.GeneratedImage {
				t.Error("generated image changed on failure")
			}
			if s.View != ViewSetup {
				t.Errorf("view = %s, want setup", s.View)
			}
			checkInvariants(t, s)
		})
	}
}

func TestApply_StaleOutcomeIgnored(t *testing.T) {
	loading, ticket, _ := NewState().Upload(testPhoto).Begin()
	reuploaded := loading.Upload(testPhoto)

	s, ok := reuploaded.Apply(Outcome{Token: ticket.Token, Image: testCharacter})
	if ok {
		t.Fatal("stale outcome applied")
	}
	if s.Status != StatusIdle || s.GeneratedImage != nil {
		t.Errorf("state changed by stale outcome: %+v", s)
	}

	// A second settle for the same token is ignored too.
	done, _ := loading.Apply(Outcome{Token: ticket.Token, Image: testCharacter})
	if _, ok := done.Apply(Outcome{Token: ticket.Token, Err: errors.New("late")}); ok {
		t.Error("second outcome applied")
	}
}

func TestRetryAfterSuccess(t *testing.T) {
	loading, ticket, _ := NewState().Upload(testPhoto).Begin()
	done, _ := loading.Apply(Outcome{Token: ticket.Token, Image: testCharacter})

	again, ticket2, err := done.Begin()
	if err != nil {
		t.Fatalf("retry rejected: %v", err)
	}
	if ticket2.Token == ticket.Token {
		t.Error("retry reused token")
	}
	if again.GeneratedImage != nil {
		t.Error("generated image kept while loading")
	}
	checkInvariants(t, again)
}

func TestResetView(t *testing.T) {
	loading, _, _ := NewState().Upload(testPhoto).Begin()
	s := loading.ResetView()
	if s.View != ViewSetup || s.Status != StatusLoading || s.Token != loading.Token {
		t.Errorf("unexpected state: %+v", s)
	}
}

func TestDownload(t *testing.T) {
	if _, ok := NewState().Download(); ok {
		t.Error("download without generated image should be a no-op")
	}

	loading, ticket, _ := NewState().Upload(testPhoto).SelectAge(models.AgeTeenager).Begin()
	done, _ := loading.Apply(Outcome{Token: ticket.Token, Image: testCharacter})

	a, ok := done.Download()
	if !ok {
		t.Fatal("expected artifact")
	}
	if a.Filename != "my-3d-character-Teenager.png" {
		t.Errorf("Filename = %q", a.Filename)
	}
	if a.MIMEType != "image/png" || string(a.Data) != "character" {
		t.Errorf("unexpected artifact: %+v", a)
	}
}
