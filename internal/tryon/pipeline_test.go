package tryon

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon-studio/internal/imagenorm"
)

type fakeGenerator struct {
	calls   atomic.Int32
	result  Result
	err     error
	lastReq Request
	block   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	return f.result, f.err
}

func testUpload(t *testing.T, width, height int) UploadedImage {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return NewUploadedImage(buf.Bytes(), "image/png")
}

func imageResult(data []byte) Result {
	return Result{Candidates: []Candidate{{
		Finish: FinishStop,
		Parts: []Part{
			TextPart{Text: "Here is your outfit"},
			ImagePart{Data: data, MediaType: "image/png"},
		},
	}}}
}

func TestPipelineRunSuccess(t *testing.T) {
	gen := &fakeGenerator{result: imageResult([]byte("generated"))}
	p := NewPipeline(Options{Generator: gen, Normalizer: imagenorm.Normalizer{MaxDimension: 80}})

	out := p.Run(context.Background(), testUpload(t, 120, 160), testUpload(t, 50, 40))
	require.True(t, out.OK())
	assert.Equal(t, []byte("generated"), out.Image.Data)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("generated")), out.ImageReference)
	assert.Empty(t, out.Kind())

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, 60, gen.lastReq.Person.Width)
	assert.Equal(t, 80, gen.lastReq.Person.Height)
	assert.Equal(t, 50, gen.lastReq.Garment.Width)
	assert.Equal(t, imagenorm.MediaType, gen.lastReq.Garment.MediaType)
	assert.NotEmpty(t, gen.lastReq.Instruction)
}

func TestPipelineMissingGarmentSkipsNetwork(t *testing.T) {
	gen := &fakeGenerator{result: imageResult([]byte("x"))}
	p := NewPipeline(Options{Generator: gen})

	out := p.Run(context.Background(), testUpload(t, 10, 10), UploadedImage{})
	require.False(t, out.OK())
	assert.Equal(t, KindInvalidInput, out.Kind())
	assert.Equal(t, MessageMissingImages, out.Failure.Message)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestPipelineUndecodableUploadSkipsNetwork(t *testing.T) {
	gen := &fakeGenerator{result: imageResult([]byte("x"))}
	p := NewPipeline(Options{Generator: gen})

	bogus := NewUploadedImage([]byte("not an image at all"), "image/jpeg")
	out := p.Run(context.Background(), testUpload(t, 10, 10), bogus)
	assert.Equal(t, KindInvalidInput, out.Kind())
	assert.Equal(t, MessageUnreadableImage, out.Failure.Message)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestPipelineOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		err    error
		want   ErrorKind
	}{
		{name: "no candidates", result: Result{}, want: KindEmptyGeneration},
		{name: "text only", result: Result{Candidates: []Candidate{{Finish: FinishStop, Parts: []Part{TextPart{Text: "I cannot do that"}}}}}, want: KindEmptyGeneration},
		{name: "candidate without content", result: Result{Candidates: []Candidate{{Finish: FinishOther}}}, want: KindEmptyGeneration},
		{name: "safety with image", result: Result{Candidates: []Candidate{{Finish: FinishSafety, Parts: []Part{ImagePart{Data: []byte("img")}}}}}, want: KindSafetyRefused},
		{name: "prompt blocked", result: Result{BlockReason: "PROHIBITED_CONTENT"}, want: KindSafetyRefused},
		{name: "rate limited", err: &RemoteError{StatusCode: 429}, want: KindRateLimited},
		{name: "forbidden", err: &RemoteError{StatusCode: 403}, want: KindPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{result: tt.result, err: tt.err}
			p := NewPipeline(Options{Generator: gen})

			out := p.Run(context.Background(), testUpload(t, 10, 10), testUpload(t, 10, 10))
			assert.Equal(t, tt.want, out.Kind())
			assert.Nil(t, out.Image)
			assert.Equal(t, int32(1), gen.calls.Load())
		})
	}
}

func TestPipelineTimeoutIsServiceUnavailable(t *testing.T) {
	gen := &fakeGenerator{block: true}
	p := NewPipeline(Options{Generator: gen, Timeout: 20 * time.Millisecond})

	out := p.Run(context.Background(), testUpload(t, 10, 10), testUpload(t, 10, 10))
	assert.Equal(t, KindServiceUnavailable, out.Kind())
}

func TestPipelineWithoutGenerator(t *testing.T) {
	p := NewPipeline(Options{})

	out := p.Run(context.Background(), testUpload(t, 10, 10), testUpload(t, 10, 10))
	assert.Equal(t, KindPermissionDenied, out.Kind())
}

func TestNewRequestRejectsEmptyPayload(t *testing.T) {
	_, err := NewRequest(imagenorm.Image{Encoded: "abc"}, imagenorm.Image{}, "x")
	assert.ErrorIs(t, err, ErrMissingImage)

	req, err := NewRequest(imagenorm.Image{Encoded: "abc"}, imagenorm.Image{Encoded: "def"}, "x")
	require.NoError(t, err)
	assert.Equal(t, "def", req.Garment.Encoded)
}

func TestEvaluateScansCandidatesInOrder(t *testing.T) {
	res := Result{Candidates: []Candidate{
		{Finish: FinishStop, Parts: []Part{TextPart{Text: "thinking"}}},
		{Finish: FinishStop, Parts: []Part{nil, ImagePart{}, ImagePart{Data: []byte("second"), MediaType: "image/webp"}}},
		{Finish: FinishStop, Parts: []Part{ImagePart{Data: []byte("third")}}},
	}}

	img, err := Evaluate(res)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), img.Data)
	assert.Equal(t, "image/webp", img.MediaType)
}

func TestUploadedImage(t *testing.T) {
	assert.True(t, UploadedImage{}.IsEmpty())
	assert.True(t, NewUploadedImage(nil, "image/png").IsEmpty())

	up := testUpload(t, 4, 4)
	assert.Equal(t, "image/png", up.MediaType)

	parsed, err := ParseUploadedImage("data:image/png;base64," + up.Encoded)
	require.NoError(t, err)
	assert.Equal(t, up.Data, parsed.Data)
	assert.Equal(t, "image/png", parsed.MediaType)

	sniffed, err := ParseUploadedImage(up.Encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", sniffed.MediaType)

	_, err = ParseUploadedImage("   ")
	assert.ErrorIs(t, err, ErrMissingImage)

	_, err = ParseUploadedImage("data:image/png,rawtext")
	assert.Error(t, err)
}
