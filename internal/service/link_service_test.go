package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/cmla-cc/shortlink/internal/model"
	"github.com/cmla-cc/shortlink/internal/qr"
	"github.com/cmla-cc/shortlink/internal/repository"
)

// MockLinkRepository is a mock implementation of LinkRepository
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Find(ctx context.Context, alias string) (*model.LinkRecord, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkRecord), args.Error(1)
}

func (m *MockLinkRepository) Create(ctx context.Context, alias string, record *model.LinkRecord) error {
	args := m.Called(ctx, alias, record)
	return args.Error(0)
}

func (m *MockLinkRepository) Update(ctx context.Context, alias string, record *model.LinkRecord) error {
	args := m.Called(ctx, alias, record)
	return args.Error(0)
}

func setupService(t *testing.T) (*LinkService, *MockLinkRepository) {
	// Initialize logger for tests
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	mockRepo := new(MockLinkRepository)
	service := NewLinkService(mockRepo, qr.NewRenderer("cmla.cc"), "cmla.cc")

	return service, mockRepo
}

func TestCreate_Success(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return createdAt }

	mockRepo.On("Find", ctx, "go").Return(nil, repository.ErrLinkNotFound)
	mockRepo.On("Create", ctx, "go", mock.AnythingOfType("*model.LinkRecord")).Return(nil)

	record, err := service.Create(ctx, "google.com", "go")

	assert.NoError(t, err)
	assert.Equal(t, "https://google.com", record.Original)
	assert.Equal(t, "https://cmla.cc/s/go", record.ShortURL)
	assert.Equal(t, createdAt, record.CreatedAt)
	assert.Equal(t, int64(0), record.Visits)
	assert.Nil(t, record.LastVisited)
	assert.True(t, strings.HasPrefix(record.QRCode, "<svg"))
	mockRepo.AssertExpectations(t)
}

func TestCreate_SchemePrepending(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare domain", "example.com", "https://example.com"},
		{"http scheme kept", "http://example.com", "http://example.com"},
		{"https scheme kept", "https://example.com", "https://example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo.On("Find", ctx, mock.AnythingOfType("string")).Return(nil, repository.ErrLinkNotFound).Once()
			mockRepo.On("Create", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("*model.LinkRecord")).Return(nil).Once()

			record, err := service.Create(ctx, tc.input, "a-"+tc.name)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, record.Original)
		})
	}
	mockRepo.AssertExpectations(t)
}

func TestCreate_AliasTooLong(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	alias := strings.Repeat("a", 27)

	_, err := service.Create(ctx, "example.com", alias)

	assert.ErrorIs(t, err, ErrAliasTooLong)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_AliasAtLengthBound(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	alias := strings.Repeat("a", 26)

	mockRepo.On("Find", ctx, alias).Return(nil, repository.ErrLinkNotFound)
	mockRepo.On("Create", ctx, alias, mock.AnythingOfType("*model.LinkRecord")).Return(nil)

	record, err := service.Create(ctx, "example.com", alias)

	assert.NoError(t, err)
	assert.Equal(t, "https://cmla.cc/s/"+alias, record.ShortURL)
	mockRepo.AssertExpectations(t)
}

func TestCreate_MissingAlias(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, "example.com", "")

	assert.ErrorIs(t, err, ErrMissingAlias)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_InvalidOriginalURL(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		url  string
	}{
		{"empty URL", ""},
		{"only scheme", "https://"},
		// Contains "http" as a substring, so no scheme is prepended and the
		// bare path fails validation.
		{"http in path only", "site-about/http-codes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Create(ctx, tc.url, "go")
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_Conflict(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	existing := &model.LinkRecord{Original: "https://google.com"}
	mockRepo.On("Find", ctx, "go").Return(existing, nil)

	_, err := service.Create(ctx, "example.com", "go")

	assert.ErrorIs(t, err, repository.ErrAliasExists)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_ConflictRace(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	// The alias appears free on the pre-check, but another create wins the
	// SETNX before ours lands.
	mockRepo.On("Find", ctx, "go").Return(nil, repository.ErrLinkNotFound)
	mockRepo.On("Create", ctx, "go", mock.AnythingOfType("*model.LinkRecord")).
		Return(repository.ErrAliasExists)

	_, err := service.Create(ctx, "example.com", "go")

	assert.ErrorIs(t, err, repository.ErrAliasExists)
	mockRepo.AssertExpectations(t)
}

func TestCreate_StoreError(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Find", ctx, "go").Return(nil, repository.ErrStore)

	_, err := service.Create(ctx, "example.com", "go")

	assert.ErrorIs(t, err, repository.ErrStore)
	mockRepo.AssertExpectations(t)
}

func TestFetchWithQR_Success(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	stored := &model.LinkRecord{
		Original:  "https://google.com",
		ShortURL:  "https://cmla.cc/s/go",
		CreatedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		Visits:    7,
	}
	mockRepo.On("Find", ctx, "go").Return(stored, nil)

	record, err := service.FetchWithQR(ctx, "go")

	assert.NoError(t, err)
	assert.Equal(t, stored.Original, record.Original)
	assert.Equal(t, int64(7), record.Visits)
	assert.True(t, strings.HasPrefix(record.QRCode, "<svg"))
	mockRepo.AssertExpectations(t)
}

func TestFetchWithQR_MissingAlias(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	_, err := service.FetchWithQR(ctx, "")

	assert.ErrorIs(t, err, ErrMissingAlias)
	mockRepo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestFetchWithQR_NotFound(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Find", ctx, "gone").Return(nil, repository.ErrLinkNotFound)

	_, err := service.FetchWithQR(ctx, "gone")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	mockRepo.AssertExpectations(t)
}

func TestResolveAndCount_Success(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	createdAt := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	visitedAt := createdAt.Add(48 * time.Hour)
	service.now = func() time.Time { return visitedAt }

	stored := &model.LinkRecord{
		Original:  "https://google.com",
		ShortURL:  "https://cmla.cc/s/go",
		CreatedAt: createdAt,
		Visits:    3,
	}
	mockRepo.On("Find", ctx, "go").Return(stored, nil)

	updated := make(chan *model.LinkRecord, 1)
	mockRepo.On("Update", mock.Anything, "go", mock.AnythingOfType("*model.LinkRecord")).
		Run(func(args mock.Arguments) {
			updated <- args.Get(2).(*model.LinkRecord)
		}).
		Return(nil)

	target, err := service.ResolveAndCount(ctx, "go")

	assert.NoError(t, err)
	assert.Equal(t, "https://google.com", target)

	select {
	case record := <-updated:
		assert.Equal(t, int64(4), record.Visits)
		if assert.NotNil(t, record.LastVisited) {
			assert.Equal(t, visitedAt, *record.LastVisited)
			assert.False(t, record.LastVisited.Before(record.CreatedAt))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry update was never persisted")
	}
	mockRepo.AssertExpectations(t)
}

func TestResolveAndCount_NotFound(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Find", ctx, "gone").Return(nil, repository.ErrLinkNotFound)

	_, err := service.ResolveAndCount(ctx, "gone")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAndCount_EmptyOriginal(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	mockRepo.On("Find", ctx, "bad").Return(&model.LinkRecord{}, nil)

	_, err := service.ResolveAndCount(ctx, "bad")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveAndCount_UpdateFailureDoesNotBlockRedirect(t *testing.T) {
	service, mockRepo := setupService(t)
	ctx := context.Background()

	stored := &model.LinkRecord{Original: "https://google.com"}
	mockRepo.On("Find", ctx, "go").Return(stored, nil)

	done := make(chan struct{})
	mockRepo.On("Update", mock.Anything, "go", mock.AnythingOfType("*model.LinkRecord")).
		Run(func(mock.Arguments) { close(done) }).
		Return(repository.ErrStore)

	target, err := service.ResolveAndCount(ctx, "go")

	assert.NoError(t, err)
	assert.Equal(t, "https://google.com", target)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry update was never attempted")
	}
}

func TestBuildShortURL(t *testing.T) {
	service, _ := setupService(t)

	testCases := []struct {
		name    string
		alias   string
		want    string
		wantErr error
	}{
		{"simple alias", "go", "https://cmla.cc/s/go", nil},
		{"alias with slash", "a/b", "https://cmla.cc/s/a/b", nil},
		{"empty alias", "", "", ErrMissingAlias},
		{"control character", "a\x00b", "", ErrInvalidURL},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := service.buildShortURL(tc.alias)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare domain", "example.com", "https://example.com", false},
		{"http kept", "http://example.com", "http://example.com", false},
		{"https kept", "https://example.com", "https://example.com", false},
		{"subdomain with path", "sub.example.com/a/b", "https://sub.example.com/a/b", false},
		{"empty", "", "", true},
		{"scheme only", "https://", "", true},
		{"http substring not prefixed", "docs/http-notes", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeURL(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidURL))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
