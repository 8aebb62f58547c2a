package planner

import (
	"context"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
	generativeAI "github.com/wayfarer-labs/wayfarer-api/internal/api/generative_ai"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type MockMapClient struct {
	mock.Mock
}

var _ amap.Client = (*MockMapClient)(nil)

func (m *MockMapClient) TextSearch(ctx context.Context, keywords, city string) ([]types.POI, error) {
	args := m.Called(ctx, keywords, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.POI), args.Error(1)
}

func (m *MockMapClient) AroundSearch(ctx context.Context, keywords, location string, radiusMeters int) ([]types.POI, error) {
	args := m.Called(ctx, keywords, location, radiusMeters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.POI), args.Error(1)
}

func (m *MockMapClient) Geocode(ctx context.Context, address, city string) (*amap.GeocodeResult, error) {
	args := m.Called(ctx, address, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*amap.GeocodeResult), args.Error(1)
}

func (m *MockMapClient) Regeocode(ctx context.Context, location string) (string, error) {
	args := m.Called(ctx, location)
	return args.String(0), args.Error(1)
}

func (m *MockMapClient) Weather(ctx context.Context, city string) (*types.WeatherReport, error) {
	args := m.Called(ctx, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.WeatherReport), args.Error(1)
}

func (m *MockMapClient) Route(ctx context.Context, origin, destination string, mode types.TransportMode, city string) (*amap.RouteResult, error) {
	args := m.Called(ctx, origin, destination, mode, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*amap.RouteResult), args.Error(1)
}

func (m *MockMapClient) Distance(ctx context.Context, origins, destination string) (*amap.RouteResult, error) {
	args := m.Called(ctx, origins, destination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*amap.RouteResult), args.Error(1)
}

func (m *MockMapClient) StaticMapURL(center string, markers []amap.Marker, path []string, size string, zoom int) string {
	args := m.Called(center, markers, path, size, zoom)
	return args.String(0)
}

func (m *MockMapClient) GenerateRouteMap(ctx context.Context, pois []types.POI, mode types.TransportMode) (string, error) {
	args := m.Called(ctx, pois, mode)
	return args.String(0), args.Error(1)
}

func (m *MockMapClient) DownloadStaticMap(ctx context.Context, mapURL string) (string, error) {
	args := m.Called(ctx, mapURL)
	return args.String(0), args.Error(1)
}

type MockChatClient struct {
	mock.Mock
}

var _ generativeAI.ChatClient = (*MockChatClient)(nil)

func (m *MockChatClient) Complete(ctx context.Context, system string, history []types.ChatMessage, message string) (string, error) {
	args := m.Called(ctx, system, history, message)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) CompleteStream(ctx context.Context, system string, history []types.ChatMessage, message string) (<-chan generativeAI.StreamChunk, error) {
	args := m.Called(ctx, system, history, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan generativeAI.StreamChunk), args.Error(1)
}

type MockImageResolver struct {
	mock.Mock
}

var _ ImageResolver = (*MockImageResolver)(nil)

func (m *MockImageResolver) ResolveImage(ctx context.Context, query, centerLocation string, markers []amap.Marker) string {
	args := m.Called(ctx, query, centerLocation, markers)
	return args.String(0)
}
