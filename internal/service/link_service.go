package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cmla-cc/shortlink/internal/metrics"
	"github.com/cmla-cc/shortlink/internal/model"
	"github.com/cmla-cc/shortlink/internal/qr"
	"github.com/cmla-cc/shortlink/internal/repository"
)

var (
	ErrMissingAlias = errors.New("missing alias")
	ErrAliasTooLong = errors.New("alias too long")
	ErrInvalidURL   = errors.New("invalid URL format")
)

const (
	maxAliasLength = 26
	updateTimeout  = 3 * time.Second
)

// LinkService implements the short-link lifecycle: create a record with its
// QR artifact, fetch a record with a fresh QR artifact, and resolve an alias
// to its redirect target while counting the visit.
type LinkService struct {
	repo       repository.LinkRepository
	renderer   *qr.Renderer
	baseDomain string
	logger     *zap.Logger
	now        func() time.Time
}

func NewLinkService(repo repository.LinkRepository, renderer *qr.Renderer, baseDomain string) *LinkService {
	return &LinkService{
		repo:       repo,
		renderer:   renderer,
		baseDomain: baseDomain,
		logger:     zap.L().With(zap.String("component", "LinkService")),
		now:        time.Now,
	}
}

// Create validates the inputs, renders the QR artifact and stores a new
// record under the alias. An alias that already has a record is rejected
// with repository.ErrAliasExists and the stored record is left untouched.
func (s *LinkService) Create(ctx context.Context, rawOriginal, rawAlias string) (*model.QRRecord, error) {
	if len(rawAlias) > maxAliasLength {
		return nil, ErrAliasTooLong
	}

	shortURL, err := s.buildShortURL(rawAlias)
	if err != nil {
		return nil, err
	}

	original, err := normalizeURL(rawOriginal)
	if err != nil {
		return nil, err
	}

	// Fast conflict check before rendering. The SETNX in Create below is
	// what actually guarantees at most one winner per alias.
	if _, err := s.repo.Find(ctx, rawAlias); err == nil {
		return nil, repository.ErrAliasExists
	} else if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, err
	}

	svg, err := s.render(rawAlias)
	if err != nil {
		return nil, err
	}

	record := &model.LinkRecord{
		Original:    original,
		ShortURL:    shortURL,
		CreatedAt:   s.now().UTC(),
		Visits:      0,
		LastVisited: nil,
	}

	if err := s.repo.Create(ctx, rawAlias, record); err != nil {
		return nil, err
	}

	metrics.LinkCreationTotal.WithLabelValues("success").Inc()
	return &model.QRRecord{LinkRecord: *record, QRCode: svg}, nil
}

// FetchWithQR returns the stored record for alias together with freshly
// rendered QR markup. Stored qr_code is never trusted; the artifact is
// recomputed on every fetch.
func (s *LinkService) FetchWithQR(ctx context.Context, alias string) (*model.QRRecord, error) {
	if _, err := s.buildShortURL(alias); err != nil {
		return nil, err
	}

	record, err := s.repo.Find(ctx, alias)
	if err != nil {
		return nil, err
	}

	svg, err := s.render(alias)
	if err != nil {
		return nil, err
	}

	return &model.QRRecord{LinkRecord: *record, QRCode: svg}, nil
}

func (s *LinkService) render(alias string) (string, error) {
	start := time.Now()
	svg, err := s.renderer.Render(alias)
	metrics.QRRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Failed to render QR code", zap.Error(err), zap.String("alias", alias))
	}
	return svg, err
}

// ResolveAndCount returns the redirect target for alias and records the
// visit. The telemetry write is fire-and-forget: it must never delay or fail
// the redirect, and lost increments under concurrent resolution are accepted.
func (s *LinkService) ResolveAndCount(ctx context.Context, alias string) (string, error) {
	record, err := s.repo.Find(ctx, alias)
	if err != nil {
		return "", err
	}
	if record.Original == "" {
		return "", repository.ErrLinkNotFound
	}

	record.Visits++
	visitedAt := s.now().UTC()
	record.LastVisited = &visitedAt

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()

		if err := s.repo.Update(ctx, alias, record); err != nil {
			metrics.VisitUpdateFailures.Inc()
			s.logger.Warn("Failed to persist visit telemetry", zap.Error(err), zap.String("alias", alias))
		}
	}()

	metrics.RedirectTotal.WithLabelValues("hit").Inc()
	return record.Original, nil
}

// buildShortURL composes the canonical https://<base-domain>/s/<alias> URL.
// The alias character set is constrained only by what still parses as a URL
// after direct, unescaped substitution into the path.
func (s *LinkService) buildShortURL(alias string) (string, error) {
	if alias == "" {
		return "", ErrMissingAlias
	}

	shortURL := "https://" + s.baseDomain + "/s/" + alias
	if !isConstructable(shortURL) {
		return "", ErrInvalidURL
	}
	return shortURL, nil
}

// normalizeURL turns a raw user-supplied string into an absolute, schemed
// URL. The substring test is intentionally loose and kept from the reference
// behavior: any input containing "http" anywhere, not just as a scheme
// prefix, passes through unchanged.
func normalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidURL
	}

	if !strings.Contains(raw, "http") {
		raw = "https://" + raw
	}

	if !isConstructable(raw) {
		return "", ErrInvalidURL
	}
	return raw, nil
}

func isConstructable(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
