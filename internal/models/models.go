package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// AgeGroup is the age classification used to parameterise the character prompt.
type AgeGroup string

const (
	AgeBaby     AgeGroup = "Baby"
	AgeChild    AgeGroup = "Child"
	AgeTeenager AgeGroup = "Teenager"
	AgeAdult    AgeGroup = "Adult"
	AgeSenior   AgeGroup = "Senior"
)

// DefaultAgeGroup is selected for a fresh session.
const DefaultAgeGroup = AgeChild

// AgeGroups lists every age group in display order.
var AgeGroups = []AgeGroup{AgeBaby, AgeChild, AgeTeenager, AgeAdult, AgeSenior}

// ParseAgeGroup matches s case-insensitively against the known age groups.
func ParseAgeGroup(s string) (AgeGroup, error) {
	s = strings.TrimSpace(s)
	for _, g := range AgeGroups {
		if strings.EqualFold(string(g), s) {
			return g, nil
		}
	}
	return "", fmt.Errorf("invalid age_group: %q", s)
}

// Valid reports whether g is one of the known age groups.
func (g AgeGroup) Valid() bool {
	for _, known := range AgeGroups {
		if g == known {
			return true
		}
	}
	return false
}

// DefaultImageMIMEType is assumed when a payload carries no type declaration.
const DefaultImageMIMEType = "image/jpeg"

// OutputImageMIMEType is the fixed type of generated characters.
const OutputImageMIMEType = "image/png"

// ImagePayload is raw image bytes plus their MIME type.
type ImagePayload struct {
	Data     []byte
	MIMEType string
}

// ParseImagePayload decodes a data URI (data:<mime>;base64,<data>) or a bare
// base64 string. Bare payloads are typed DefaultImageMIMEType.
func ParseImagePayload(s string) (*ImagePayload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	data := s
	mimeType := ""
	if header, body, ok := strings.Cut(s, ","); ok {
		data = body
		if meta, found := strings.CutPrefix(header, "data:"); found {
			mimeType, _, _ = strings.Cut(meta, ";")
		}
	}
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	return &ImagePayload{Data: raw, MIMEType: mimeType}, nil
}

// DataURI formats the payload for direct use as an <img> source.
func (p *ImagePayload) DataURI() string {
	if p == nil {
		return ""
	}
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Extension returns the file extension matching the payload type.
func (p *ImagePayload) Extension() string {
	switch p.MIMEType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
