package main

import (
	"context"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/Nokodoko/string-sum/exported"
	"github.com/Nokodoko/string-sum/imported"
	"github.com/Nokodoko/string-sum/internal/config"
	"github.com/Nokodoko/string-sum/stringsum"
)

type closeFunc func(context.Context) error

func noopClose(context.Context) error { return nil }

// openAdder returns the backend selected by cfg and a function releasing it.
func openAdder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stringsum.Adder, closeFunc, error) {
	logger = logger.With(zap.String("backend", cfg.Backend))

	if cfg.Backend == config.BackendNative {
		logger.Debug("Using in-process backend")
		return stringsum.Native, noopClose, nil
	}

	// Create a Wasm runtime, set up WASI.
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	var (
		m interface {
			stringsum.Adder
			Close(context.Context) error
		}
		err error
	)
	switch cfg.Backend {
	case config.BackendExported:
		logger.Debug("Loading reactor module", zap.String("path", cfg.Modules.Exported))
		m, err = exported.NewModule(ctx, r, cfg.Modules.Exported, exported.WithLogger(logger))
	case config.BackendImported:
		logger.Debug("Loading command module", zap.String("path", cfg.Modules.Imported))
		m, err = imported.NewModule(ctx, r, cfg.Modules.Imported, imported.WithLogger(logger))
	default:
		err = cerrors.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		_ = r.Close(ctx)
		return nil, nil, err
	}

	return m, func(ctx context.Context) error {
		if err := m.Close(ctx); err != nil {
			logger.Warn("Failed to close module", zap.Error(err))
		}
		return r.Close(ctx)
	}, nil
}
