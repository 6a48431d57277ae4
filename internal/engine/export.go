package engine

import (
	"context"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/export"
)

// snapshotForExport returns a copy of the live scene and the exporter. The
// render itself runs outside the lock, so edits may continue meanwhile.
func (e *Engine) snapshotForExport() (*document.Scene, *export.Exporter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if e.exporter == nil {
		x, err := export.New(export.WithImageSource(e.images), export.WithLogger(e.logger))
		if err != nil {
			return nil, nil, err
		}
		e.exporter = x
	}
	return e.scene.Clone(), e.exporter, nil
}

// Rasterize renders the live scene, or opts.Area of it, to image bytes.
func (e *Engine) Rasterize(ctx context.Context, opts export.Options) ([]byte, error) {
	s, x, err := e.snapshotForExport()
	if err != nil {
		return nil, err
	}
	return x.Rasterize(ctx, s, opts)
}

func (e *Engine) ExportSVG(ctx context.Context, opts export.Options) ([]byte, error) {
	s, x, err := e.snapshotForExport()
	if err != nil {
		return nil, err
	}
	return x.SVG(ctx, s, opts)
}

// ExportPrint renders the live scene as a print-ready PDF with bleed and
// crop marks.
func (e *Engine) ExportPrint(ctx context.Context, opts export.Options) ([]byte, error) {
	s, x, err := e.snapshotForExport()
	if err != nil {
		return nil, err
	}
	return x.Print(ctx, s, opts)
}

// ComposeDocument builds a paged PDF. Pages without a scene show the live
// scene; the others render the snapshot they carry, such as a past state or
// another product side.
func (e *Engine) ComposeDocument(ctx context.Context, pages []export.Page, opts export.Options) ([]byte, error) {
	s, x, err := e.snapshotForExport()
	if err != nil {
		return nil, err
	}
	filled := make([]export.Page, len(pages))
	for i, p := range pages {
		if p.Scene == nil {
			p.Scene = s
		}
		filled[i] = p
	}
	return x.ComposeDocument(ctx, filled, opts)
}
