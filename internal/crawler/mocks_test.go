package crawler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(FetchResponse), args.Error(1)
}

// MockDetector is a mock implementation of the Detector interface.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) NeedsJS(ctx context.Context, body []byte) bool {
	args := m.Called(ctx, body)
	return args.Bool(0)
}

// MockMetadataParser is a mock implementation of the MetadataParser interface.
type MockMetadataParser struct {
	mock.Mock
}

func (m *MockMetadataParser) ParseFile(ctx context.Context, path string) (Metadata, error) {
	args := m.Called(ctx, path)
	meta, _ := args.Get(0).(Metadata)
	return meta, args.Error(1)
}

// MockRetryPolicy is a mock implementation of the RetryPolicy interface.
type MockRetryPolicy struct {
	mock.Mock
}

func (m *MockRetryPolicy) ShouldRetry(err error, attempt int) bool {
	args := m.Called(err, attempt)
	return args.Bool(0)
}

func (m *MockRetryPolicy) Backoff(attempt int) time.Duration {
	args := m.Called(attempt)
	return args.Get(0).(time.Duration)
}

// MockPublisher is a mock implementation of the Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
