package bgremove

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// MockTier is a mock implementation of the Tier interface
type MockTier struct {
	mock.Mock
}

func (m *MockTier) Name() string {
	return m.Called().String(0)
}

func (m *MockTier) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*image.NRGBA), args.Error(1)
}

// subjectImage is a uniform border with a contrasting centered rectangle
func subjectImage(bg, fg color.NRGBA) *image.NRGBA {
	img := imaging.New(200, 200, bg)
	for y := 60; y < 140; y++ {
		for x := 60; x < 140; x++ {
			img.Set(x, y, fg)
		}
	}
	return img
}

func alphaAt(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[y*img.Stride+x*4+3]
}

func TestFloodFillSeparatesBorderFromSubject(t *testing.T) {
	img := subjectImage(color.NRGBA{R: 240, G: 240, B: 235, A: 255}, color.NRGBA{R: 40, G: 60, B: 90, A: 255})

	out, err := NewFloodFill(DefaultFloodFillOptions()).Remove(context.Background(), img)
	require.NoError(t, err)

	for _, p := range []image.Point{{0, 0}, {199, 199}, {10, 100}, {100, 10}, {50, 50}} {
		assert.Equal(t, uint8(0), alphaAt(out, p.X, p.Y), "border pixel %v", p)
	}
	for _, p := range []image.Point{{100, 100}, {65, 65}, {134, 134}} {
		assert.Equal(t, uint8(255), alphaAt(out, p.X, p.Y), "subject pixel %v", p)
	}
}

func TestFloodFillLuminanceModeOnGrayscale(t *testing.T) {
	img := subjectImage(color.NRGBA{R: 230, G: 230, B: 230, A: 255}, color.NRGBA{R: 30, G: 30, B: 30, A: 255})

	out, err := NewFloodFill(DefaultFloodFillOptions()).Remove(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), alphaAt(out, 5, 5))
	assert.Equal(t, uint8(255), alphaAt(out, 100, 100))
}

func TestFloodFillRejectsUniformImage(t *testing.T) {
	img := imaging.New(100, 100, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	_, err := NewFloodFill(DefaultFloodFillOptions()).Remove(context.Background(), img)
	assert.True(t, errors.Is(err, ErrNoPlausibleTolerance))
}

func TestSegmenterFindsSubject(t *testing.T) {
	img := subjectImage(color.NRGBA{R: 30, G: 160, B: 60, A: 255}, color.NRGBA{R: 220, G: 180, B: 160, A: 255})

	out, err := NewSegmenter().Remove(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), alphaAt(out, 5, 5))
	assert.Equal(t, uint8(255), alphaAt(out, 100, 100))
	assert.True(t, Plausible(out))
}

func TestSegmenterLowContrast(t *testing.T) {
	img := imaging.New(64, 64, color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	_, err := NewSegmenter().Remove(context.Background(), img)
	assert.True(t, errors.Is(err, ErrLowContrast))
}

func TestRemoverFallsThroughTiers(t *testing.T) {
	ctx := context.Background()
	img := subjectImage(color.NRGBA{R: 250, G: 250, B: 250, A: 255}, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	failing := new(MockTier)
	failing.On("Name").Return("api")
	failing.On("Remove", ctx, img).Return(nil, errors.New("rate limited"))

	opaque := new(MockTier)
	opaque.On("Name").Return("local")
	opaque.On("Remove", ctx, img).Return(Opaque(img), nil)

	remover := NewRemover(zap.NewNop(), failing, opaque, NewFloodFill(DefaultFloodFillOptions()))
	res := remover.Remove(ctx, img)

	assert.Equal(t, "floodfill", res.Tier)
	assert.Equal(t, uint8(0), alphaAt(res.Image, 0, 0))
	failing.AssertExpectations(t)
	opaque.AssertExpectations(t)
}

func TestRemoverReturnsOriginalWhenAllTiersFail(t *testing.T) {
	img := imaging.New(50, 50, color.NRGBA{R: 90, G: 90, B: 90, A: 128})

	res := NewRemover(zap.NewNop(), NewFloodFill(DefaultFloodFillOptions())).Remove(context.Background(), img)

	assert.Equal(t, TierOriginal, res.Tier)
	opaqueFrac, _ := AlphaStats(res.Image)
	assert.Equal(t, 1.0, opaqueFrac)
}

func TestProcessHeadshotIsGrayscaleWithAlpha(t *testing.T) {
	img := subjectImage(color.NRGBA{R: 250, G: 250, B: 250, A: 255}, color.NRGBA{R: 200, G: 30, B: 30, A: 255})

	res := NewRemover(zap.NewNop(), NewFloodFill(DefaultFloodFillOptions())).ProcessHeadshot(context.Background(), img)

	i := 100*res.Image.Stride + 100*4
	p := res.Image.Pix[i : i+4]
	assert.Equal(t, p[0], p[1])
	assert.Equal(t, p[1], p[2])
	assert.Equal(t, uint8(255), p[3])
	assert.Equal(t, uint8(0), alphaAt(res.Image, 0, 0))
}

func TestAPIClientUploadsMultipart(t *testing.T) {
	cutout := subjectImage(color.NRGBA{}, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, cutout))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/removebg", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "auto", r.FormValue("size"))
		f, _, err := r.FormFile("image_file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.NotEmpty(t, data)
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(encoded.Bytes())
	}))
	defer server.Close()

	client := NewAPIClient(APIConfig{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	client.SetRetryPolicy(retry.Policy{Attempts: 1})

	out, err := client.Remove(context.Background(), subjectImage(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, color.NRGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), alphaAt(out, 0, 0))
	assert.Equal(t, uint8(255), alphaAt(out, 100, 100))
}

func TestAPIClientWithoutKey(t *testing.T) {
	_, err := NewAPIClient(APIConfig{}, zap.NewNop()).Remove(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}
