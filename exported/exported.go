// Package exported drives the string_sum reactor module, which exposes
// sum_as_string with //go:wasmexport.
package exported

//go:generate env GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o module/module.wasm ./module

import (
	"context"
	"os"
	"sync"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/Nokodoko/string-sum/internal/abi"
	"github.com/Nokodoko/string-sum/stringsum"
)

// DefaultPath is where go generate writes the guest module.
const DefaultPath = "module/module.wasm"

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger used by the module.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// Module is a string_sum reactor instance. It implements stringsum.Adder.
// Calls are serialised since a wasm instance is single threaded.
type Module struct {
	mu  sync.Mutex
	m   api.Module
	sum api.Function

	logger *zap.Logger
}

var _ stringsum.Adder = (*Module)(nil)

// NewModule reads the guest from path and instantiates it in r. The runtime
// needs WASI, see wasi_snapshot_preview1.MustInstantiate.
func NewModule(ctx context.Context, r wazero.Runtime, path string, opts ...Option) (*Module, error) {
	wasmFile, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Errorf("failed to read WASM file: %w", err)
	}
	return Instantiate(ctx, r, wasmFile, opts...)
}

// Instantiate instantiates an already loaded guest binary.
func Instantiate(ctx context.Context, r wazero.Runtime, wasmFile []byte, opts ...Option) (*Module, error) {
	my := &Module{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(my)
	}

	// Configure the module to initialize the reactor.
	config := wazero.NewModuleConfig().WithStartFunctions().WithName("")

	wasmModule, err := r.InstantiateWithConfig(ctx, wasmFile, config)
	if err != nil {
		return nil, cerrors.Errorf("failed to instantiate wasm module: %w", err)
	}

	initialize := wasmModule.ExportedFunction(abi.ExportInitialize)
	if initialize == nil {
		_ = wasmModule.Close(ctx)
		return nil, cerrors.Errorf("wasm module does not export %q, was it built with -buildmode=c-shared?", abi.ExportInitialize)
	}
	if _, err := initialize.Call(ctx); err != nil {
		_ = wasmModule.Close(ctx)
		return nil, cerrors.Errorf("failed to call %s: %w", abi.ExportInitialize, err)
	}

	sum := wasmModule.ExportedFunction(abi.ExportSumAsString)
	if sum == nil {
		_ = wasmModule.Close(ctx)
		return nil, cerrors.Errorf("wasm module does not export %q", abi.ExportSumAsString)
	}
	if wasmModule.Memory() == nil {
		_ = wasmModule.Close(ctx)
		return nil, cerrors.New("wasm module defines no memory")
	}

	my.m = wasmModule
	my.sum = sum
	my.logger.Debug("reactor module initialized")
	return my, nil
}

// SumAsString calls the guest export and copies the result out of guest memory.
func (my *Module) SumAsString(ctx context.Context, a, b uint64) (string, error) {
	my.mu.Lock()
	defer my.mu.Unlock()

	out, err := my.sum.Call(ctx, api.EncodeI64(int64(a)), api.EncodeI64(int64(b)))
	if err != nil {
		return "", cerrors.Errorf("failed to call %s: %w", abi.ExportSumAsString, err)
	}

	ptr, size := abi.Unpack(out[0])
	if size == 0 {
		return "", cerrors.Errorf("%d + %d: %w", a, b, stringsum.ErrOverflow)
	}

	buf, ok := my.m.Memory().Read(ptr, size)
	if !ok {
		return "", cerrors.Errorf("result [%d, %d) out of range of memory size %d", ptr, ptr+size, my.m.Memory().Size())
	}
	return string(buf), nil
}

// Close closes the guest instance. The runtime stays open.
func (my *Module) Close(ctx context.Context) error {
	return my.m.Close(ctx)
}
