package tryon

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type UploadedImage struct {
	Data      []byte
	Encoded   string
	MediaType string
}

func NewUploadedImage(data []byte, mediaType string) UploadedImage {
	if len(data) == 0 {
		return UploadedImage{}
	}
	return UploadedImage{
		Data:      data,
		Encoded:   base64.StdEncoding.EncodeToString(data),
		MediaType: DetectMediaType(mediaType, data),
	}
}

func ParseUploadedImage(ref string) (UploadedImage, error) {
	mediaType, payload, err := SplitDataURL(ref)
	if err != nil {
		return UploadedImage{}, err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return UploadedImage{}, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return UploadedImage{}, ErrMissingImage
	}
	return NewUploadedImage(data, mediaType), nil
}

func (u UploadedImage) IsEmpty() bool {
	return u.Encoded == ""
}

func SplitDataURL(value string) (mediaType string, payload string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", ErrMissingImage
	}

	const prefix = "data:"
	if !strings.HasPrefix(value, prefix) {
		return "", value, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid data url")
	}

	meta := strings.TrimPrefix(parts[0], prefix)
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", errors.New("data url is not base64 encoded")
	}
	mediaType = strings.TrimSpace(strings.SplitN(meta, ";", 2)[0])
	return mediaType, parts[1], nil
}

func DetectMediaType(declared string, data []byte) string {
	mediaType := strings.TrimSpace(declared)
	if strings.Contains(mediaType, ";") {
		mediaType = strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0])
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	if strings.Contains(mediaType, ";") {
		mediaType = strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0])
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = "image/jpeg"
	}
	return mediaType
}
