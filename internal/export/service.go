package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/storage"
	"github.com/luneo/canvas-engine/internal/typeid"
)

// ErrNoStore is returned when an upload is requested without a store.
var ErrNoStore = errors.New("export storage not configured")

type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindPrint Kind = "print"
	KindSVG   Kind = "svg"
)

// Job is one export request. KindPDF uses Pages when set, otherwise a single
// page of Scene labelled with Options.Label.
type Job struct {
	DesignID string          `json:"designId,omitempty"`
	Kind     Kind            `json:"kind" validate:"required,oneof=image pdf print svg"`
	Scene    *document.Scene `json:"scene,omitempty" validate:"required_without=Pages"`
	Pages    []Page          `json:"pages,omitempty" validate:"omitempty,dive"`
	Options  Options         `json:"options"`
}

// Result describes a finished export. Data is the rendered file.
type Result struct {
	ExportID    string `json:"exportId"`
	DesignID    string `json:"designId,omitempty"`
	Kind        Kind   `json:"kind"`
	ContentType string `json:"contentType"`
	Extension   string `json:"extension"`
	Size        int    `json:"size"`
	Key         string `json:"key,omitempty"`
	URL         string `json:"url,omitempty"`
	Cached      bool   `json:"cached"`
	Data        []byte `json:"-"`
}

// Cache stores rendered exports by content hash.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Recorder observes finished export jobs.
type Recorder interface {
	ObserveExport(kind string, d time.Duration, cached bool, err error)
}

type Service struct {
	exporter *Exporter
	store    storage.Store
	cache    Cache
	ttl      time.Duration
	metrics  Recorder
	logger   *zap.Logger
}

type ServiceOption func(*Service)

func WithStore(s storage.Store) ServiceOption {
	return func(svc *Service) { svc.store = s }
}

func WithCache(c Cache, ttl time.Duration) ServiceOption {
	return func(svc *Service) {
		svc.cache = c
		svc.ttl = ttl
	}
}

func WithRecorder(r Recorder) ServiceOption {
	return func(svc *Service) { svc.metrics = r }
}

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = l }
}

func NewService(x *Exporter, opts ...ServiceOption) *Service {
	svc := &Service{exporter: x, ttl: time.Hour, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run renders job, reusing a cached render of the same snapshot and
// options. With upload the file is stored at exports/{exportId}.{ext}.
func (s *Service) Run(ctx context.Context, job Job, upload bool) (Result, error) {
	start := time.Now()
	res, err := s.run(ctx, job, upload)
	if s.metrics != nil {
		s.metrics.ObserveExport(string(job.Kind), time.Since(start), res.Cached, err)
	}
	if err != nil {
		s.logger.Warn("export failed",
			zap.String("kind", string(job.Kind)),
			zap.String("design_id", job.DesignID),
			zap.Error(err),
		)
		return Result{}, err
	}
	s.logger.Info("export complete",
		zap.String("export_id", res.ExportID),
		zap.String("kind", string(job.Kind)),
		zap.Int("size", res.Size),
		zap.Bool("cached", res.Cached),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, job Job, upload bool) (Result, error) {
	ext, ctype, err := fileType(job)
	if err != nil {
		return Result{}, err
	}
	if upload && s.store == nil {
		return Result{}, ErrNoStore
	}
	key, err := CacheKey(job)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		ExportID:    typeid.NewExportID(),
		DesignID:    job.DesignID,
		Kind:        job.Kind,
		ContentType: ctype,
		Extension:   ext,
	}
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("export cache read failed", zap.Error(err))
		}
		if ok {
			res.Data, res.Cached = data, true
		}
	}
	if res.Data == nil {
		data, err := s.render(ctx, job)
		if err != nil {
			return Result{}, err
		}
		res.Data = data
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.logger.Warn("export cache write failed", zap.Error(err))
			}
		}
	}
	res.Size = len(res.Data)

	if upload {
		res.Key = "exports/" + res.ExportID + "." + ext
		if err := s.store.Put(ctx, res.Key, res.Data, ctype); err != nil {
			return Result{}, fmt.Errorf("store export: %w", err)
		}
		url, err := s.store.URL(ctx, res.Key)
		if err != nil {
			return Result{}, fmt.Errorf("export url: %w", err)
		}
		res.URL = url
	}
	return res, nil
}

func (s *Service) render(ctx context.Context, job Job) ([]byte, error) {
	switch job.Kind {
	case KindImage:
		return s.exporter.Rasterize(ctx, job.Scene, job.Options)
	case KindSVG:
		return s.exporter.SVG(ctx, job.Scene, job.Options)
	case KindPrint:
		return s.exporter.Print(ctx, job.Scene, job.Options)
	case KindPDF:
		return s.exporter.ComposeDocument(ctx, pages(job), job.Options)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidOptions, job.Kind)
	}
}

func pages(job Job) []Page {
	if len(job.Pages) > 0 {
		return job.Pages
	}
	return []Page{{Scene: job.Scene, Label: job.Options.Label}}
}

func fileType(job Job) (string, string, error) {
	switch job.Kind {
	case KindImage:
		f, err := job.Options.format()
		if err != nil {
			return "", "", err
		}
		return extension(f), contentType(f), nil
	case KindSVG:
		return "svg", "image/svg+xml", nil
	case KindPDF, KindPrint:
		return "pdf", "application/pdf", nil
	default:
		return "", "", fmt.Errorf("%w: kind %q", ErrInvalidOptions, job.Kind)
	}
}

// CacheKey hashes everything that affects the rendered bytes.
func CacheKey(job Job) (string, error) {
	h := sha256.New()
	h.Write([]byte(job.Kind))
	h.Write([]byte{0})
	for _, v := range []any{job.Scene, job.Pages, job.Options} {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("hash export job: %w", err)
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return "export:" + hex.EncodeToString(h.Sum(nil)), nil
}
