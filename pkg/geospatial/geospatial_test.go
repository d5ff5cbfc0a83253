package geospatial

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// MockGeocoder is a mock implementation of the Geocoder interface
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, query string) (GeoPoint, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(GeoPoint), args.Error(1)
}

var testRegion = RegionFromXYWH(1250, 110, 620, 450)

func TestEveryTableCityProjectsInsideRegion(t *testing.T) {
	proj := NewProjection()
	for _, name := range KnownCities() {
		pt, ok := LookupCity(name)
		require.True(t, ok, name)

		px := proj.Project(pt, testRegion)
		assert.True(t, px.X > testRegion.Min.X && px.X < testRegion.Max.X-1, "%s x=%d", name, px.X)
		assert.True(t, px.Y > testRegion.Min.Y && px.Y < testRegion.Max.Y-1, "%s y=%d", name, px.Y)
		assert.True(t, px.In(proj.Inner(testRegion)), "%s %v outside inner rect", name, px)
	}
}

func TestLosAngelesIsSouthWestOfCenter(t *testing.T) {
	proj := NewProjection()
	pt, ok := LookupCity("Los Angeles, CA")
	require.True(t, ok)

	px := proj.Project(pt, testRegion)
	inner := proj.Inner(testRegion)
	center := image.Pt((inner.Min.X+inner.Max.X)/2, (inner.Min.Y+inner.Max.Y)/2)

	assert.Less(t, px.X, center.X)
	assert.Greater(t, px.Y, center.Y)
}

func TestProjectClampsOutOfBoundsPoints(t *testing.T) {
	proj := NewProjection()
	inner := proj.Inner(testRegion)

	far := proj.Project(GeoPoint{Lat: 60, Lon: -10}, testRegion)
	assert.True(t, far.In(inner))
	assert.Equal(t, inner.Max.X-1, far.X)
	assert.Equal(t, inner.Min.Y, far.Y)
}

func TestAlaskaAndHawaiiUseInsets(t *testing.T) {
	proj := NewProjection()
	inner := proj.Inner(testRegion)

	anchorage, _ := LookupCity("anchorage")
	honolulu, _ := LookupCity("honolulu")

	ak := proj.Project(anchorage, testRegion)
	hi := proj.Project(honolulu, testRegion)

	assert.Less(t, ak.X, inner.Min.X+int(0.23*float64(inner.Dx())))
	assert.Greater(t, ak.Y, inner.Min.Y+int(0.70*float64(inner.Dy())))
	assert.Greater(t, hi.X, inner.Min.X+int(0.21*float64(inner.Dx())))
	assert.Less(t, hi.X, inner.Min.X+int(0.37*float64(inner.Dx())))
	assert.Greater(t, hi.Y, inner.Min.Y+int(0.83*float64(inner.Dy())))

	proj.Insets = false
	clamped := proj.Project(anchorage, testRegion)
	assert.Equal(t, inner.Min.X, clamped.X)
	assert.Equal(t, inner.Min.Y, clamped.Y)
}

func TestLookupCityDisambiguation(t *testing.T) {
	sc, ok := LookupCity("Charleston")
	require.True(t, ok)
	wv, ok := LookupCity("Charleston, WV")
	require.True(t, ok)
	wvLong, ok := LookupCity("Charleston, West Virginia")
	require.True(t, ok)

	assert.InDelta(t, 32.78, sc.Lat, 0.01)
	assert.InDelta(t, 38.35, wv.Lat, 0.01)
	assert.Equal(t, wv, wvLong)

	portlandME, _ := LookupCity("portland, me")
	assert.InDelta(t, -70.26, portlandME.Lon, 0.01)

	stl, ok := LookupCity("St. Louis, MO")
	require.True(t, ok)
	assert.InDelta(t, 38.63, stl.Lat, 0.01)
}

func TestLookupCityPartialMatch(t *testing.T) {
	pt, ok := LookupCity("Downtown Los Angeles")
	require.True(t, ok)
	assert.InDelta(t, 34.05, pt.Lat, 0.01)

	_, ok = LookupCity("Smallville")
	assert.False(t, ok)
}

func TestResolverChain(t *testing.T) {
	ctx := context.Background()
	geocoder := new(MockGeocoder)
	geocoder.On("Geocode", ctx, "Bozeman").Return(GeoPoint{Lat: 45.68, Lon: -111.04}, nil).Once()
	geocoder.On("Geocode", ctx, "Nowhere").Return(GeoPoint{}, ErrNotFound).Once()

	r := NewResolver(geocoder, zap.NewNop())

	table := r.ResolveWithSource(ctx, "Seattle, WA")
	assert.Equal(t, SourceTable, table.Source)

	first := r.ResolveWithSource(ctx, "Bozeman, MT")
	assert.Equal(t, SourceGeocoder, first.Source)
	second := r.ResolveWithSource(ctx, "bozeman")
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Point, second.Point)

	missing := r.ResolveWithSource(ctx, "Nowhere")
	assert.Equal(t, SourceDefault, missing.Source)
	assert.Equal(t, ContinentalCenter, missing.Point)
	// the negative answer is memoized too
	assert.Equal(t, ContinentalCenter, r.Resolve(ctx, "Nowhere"))

	geocoder.AssertExpectations(t)
	assert.Equal(t, int64(2), r.CacheStats().Hits)
}

func TestResolverWithoutGeocoder(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	assert.Equal(t, ContinentalCenter, r.Resolve(context.Background(), "Smallville"))
	assert.Equal(t, ContinentalCenter, r.Resolve(context.Background(), ""))
}

func TestNominatimClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "us", r.URL.Query().Get("countrycodes"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		if r.URL.Query().Get("q") == "Bozeman" {
			w.Write([]byte(`[{"lat":"45.6770","lon":"-111.0429","display_name":"Bozeman"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewNominatimClient(NominatimConfig{BaseURL: server.URL}, zap.NewNop())
	client.SetRetryPolicy(retry.Policy{Attempts: 1})

	pt, err := client.Geocode(context.Background(), "Bozeman")
	require.NoError(t, err)
	assert.InDelta(t, 45.677, pt.Lat, 0.001)
	assert.InDelta(t, -111.0429, pt.Lon, 0.001)

	_, err = client.Geocode(context.Background(), "Nowhere")
	assert.True(t, errors.Is(err, ErrNotFound))
}
