package design

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/moderation"
	"github.com/luneo/canvas-engine/internal/pricing"
	"github.com/luneo/canvas-engine/internal/zone"
)

var ErrInvalidID = errors.New("invalid design id")

type Service struct {
	store     Store
	rates     pricing.Rates
	moderator *moderation.Moderator
	logger    *zap.Logger
}

type Option func(*Service)

func WithRates(r pricing.Rates) Option {
	return func(s *Service) { s.rates = r }
}

func WithModerator(m *moderation.Moderator) Option {
	return func(s *Service) { s.moderator = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		rates:     pricing.DefaultRates(),
		moderator: moderation.New(moderation.Policy{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report is the outcome of validating a design before checkout.
type Report struct {
	DesignID   string            `json:"designId"`
	Version    int               `json:"version"`
	Valid      bool              `json:"valid"`
	Zones      zone.Report       `json:"zones"`
	Moderation moderation.Result `json:"moderation"`
}

func checkID(id string) error {
	if id == "" || len(id) > 128 || strings.ContainsAny(id, "/ \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Save stores s as the next version of the design.
func (s *Service) Save(ctx context.Context, designID, savedBy string, scene *document.Scene) (Snapshot, error) {
	if err := checkID(designID); err != nil {
		return Snapshot{}, err
	}
	if scene == nil {
		return Snapshot{}, fmt.Errorf("%w: nil scene", document.ErrInvalidScene)
	}
	if err := scene.Validate(); err != nil {
		return Snapshot{}, err
	}
	snap, err := s.store.Save(ctx, designID, savedBy, scene)
	if err != nil {
		return Snapshot{}, err
	}
	s.logger.Info("design saved", zap.String("id", designID), zap.Int("version", snap.Version))
	return snap, nil
}

// Load returns the latest version; a version > 0 selects that one instead.
func (s *Service) Load(ctx context.Context, designID string, version int) (Snapshot, error) {
	if err := checkID(designID); err != nil {
		return Snapshot{}, err
	}
	if version > 0 {
		return s.store.Version(ctx, designID, version)
	}
	return s.store.Latest(ctx, designID)
}

// LoadScene returns the latest scene, or nil for a design never saved. It is
// the loader of shared editing sessions.
func (s *Service) LoadScene(ctx context.Context, designID string) (*document.Scene, error) {
	snap, err := s.Load(ctx, designID, 0)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Scene, nil
}

// SaveScene is the saver of shared editing sessions.
func (s *Service) SaveScene(ctx context.Context, designID string, scene *document.Scene) error {
	_, err := s.Save(ctx, designID, "session", scene)
	return err
}

func (s *Service) Quote(ctx context.Context, designID string, quantity int) (pricing.Quote, error) {
	snap, err := s.Load(ctx, designID, 0)
	if err != nil {
		return pricing.Quote{}, err
	}
	return s.rates.Quote(snap.Scene, quantity)
}

// Validate runs zone rules and content moderation on the latest version.
func (s *Service) Validate(ctx context.Context, designID string) (Report, error) {
	snap, err := s.Load(ctx, designID, 0)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		DesignID:   designID,
		Version:    snap.Version,
		Zones:      zone.ValidateDesign(snap.Scene),
		Moderation: s.moderator.Review(snap.Scene),
	}
	r.Valid = r.Zones.Valid && r.Moderation.Approved
	if !r.Valid {
		s.logger.Info("design rejected", zap.String("id", designID), zap.Int("version", snap.Version),
			zap.Int("zones", len(r.Zones.Zones)), zap.Int("moderation", len(r.Moderation.Issues)))
	}
	return r, nil
}
