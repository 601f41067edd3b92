package tryon

import (
	"context"
	"encoding/base64"
	"fmt"

	"tryon-studio/internal/imagenorm"
)

// Generator implementations make exactly one round trip and never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

type Request struct {
	Person      imagenorm.Image
	Garment     imagenorm.Image
	Instruction string
}

func NewRequest(person, garment imagenorm.Image, instruction string) (Request, error) {
	if person.Encoded == "" {
		return Request{}, fmt.Errorf("person image: %w", ErrMissingImage)
	}
	if garment.Encoded == "" {
		return Request{}, fmt.Errorf("garment image: %w", ErrMissingImage)
	}
	return Request{
		Person:      person,
		Garment:     garment,
		Instruction: instruction,
	}, nil
}

type FinishStatus int

const (
	FinishUnspecified FinishStatus = iota
	FinishStop
	FinishSafety
	FinishOther
)

func (s FinishStatus) String() string {
	switch s {
	case FinishStop:
		return "stop"
	case FinishSafety:
		return "safety"
	case FinishOther:
		return "other"
	default:
		return "unspecified"
	}
}

type Result struct {
	Candidates  []Candidate
	BlockReason string
}

type Candidate struct {
	Finish FinishStatus
	Parts  []Part
}

type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

type ImagePart struct {
	Data      []byte
	MediaType string
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

func (p ImagePart) DataURL() string {
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(p.Data))
}

// Evaluate applies the extraction rules to a raw result: a safety refusal
// anywhere wins, then the first inline image in candidate/part order.
func Evaluate(res Result) (ImagePart, error) {
	if res.BlockReason != "" {
		return ImagePart{}, fmt.Errorf("prompt blocked (%s): %w", res.BlockReason, ErrSafetyRefused)
	}
	for _, c := range res.Candidates {
		if c.Finish == FinishSafety {
			return ImagePart{}, ErrSafetyRefused
		}
	}

	for _, c := range res.Candidates {
		for _, p := range c.Parts {
			switch v := p.(type) {
			case ImagePart:
				if len(v.Data) > 0 {
					return v, nil
				}
			case TextPart, nil:
			}
		}
	}

	return ImagePart{}, ErrEmptyGeneration
}

type Outcome struct {
	Image          *ImagePart
	ImageReference string
	Failure        *Failure
}

func Succeeded(img ImagePart) Outcome {
	return Outcome{Image: &img, ImageReference: img.DataURL()}
}

func Failed(f Failure) Outcome {
	return Outcome{Failure: &f}
}

func (o Outcome) OK() bool {
	return o.Failure == nil && o.Image != nil
}

func (o Outcome) Kind() ErrorKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}
