// Package imported drives the string_sum command module. The guest runs its
// main loop in a goroutine and pulls work from the host through the string_sum
// host module, so every call is a request/response round trip over channels.
package imported

//go:generate env GOOS=wasip1 GOARCH=wasm go build -o module/module.wasm ./module

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/stealthrocket/wazergo"
	"github.com/stealthrocket/wazergo/types"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/Nokodoko/string-sum/internal/abi"
	"github.com/Nokodoko/string-sum/stringsum"
)

// DefaultPath is where go generate writes the guest module.
const DefaultPath = "module/module.wasm"

// ErrClosed is returned by SumAsString once the guest is no longer running.
var ErrClosed = cerrors.New("module closed")

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger used by the module.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// Module is a running string_sum command module. It implements
// stringsum.Adder.
type Module struct {
	mu  sync.Mutex
	req chan<- tuple[uint64, uint64]
	res <-chan response

	done      chan struct{} // closed by Close, answers sum_request with RequestStop
	stopped   chan struct{} // closed when the guest returned
	closeOnce sync.Once
	err       error // guest exit error, set before stopped is closed

	m        api.Module
	instance *wazergo.ModuleInstance[*hostModuleInstance]

	logger *zap.Logger
}

var _ stringsum.Adder = (*Module)(nil)

// NewModule reads the guest from path, instantiates it in r and starts its
// main loop. The runtime needs WASI, see wasi_snapshot_preview1.MustInstantiate.
func NewModule(ctx context.Context, r wazero.Runtime, path string, opts ...Option) (*Module, error) {
	wasmFile, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Errorf("failed to read WASM file: %w", err)
	}
	return Instantiate(ctx, r, wasmFile, opts...)
}

// Instantiate starts an already loaded guest binary.
func Instantiate(ctx context.Context, r wazero.Runtime, wasmFile []byte, opts ...Option) (*Module, error) {
	// Unbuffered, a completed send means the guest holds the request.
	req := make(chan tuple[uint64, uint64])
	res := make(chan response, 1)

	my := &Module{
		req:     req,
		res:     res,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(my)
	}

	compiledHostModule, err := wazergo.Compile(ctx, r, hostModule)
	if err != nil {
		return nil, cerrors.Errorf("failed to compile host module: %w", err)
	}

	ins, err := compiledHostModule.Instantiate(ctx, hostModuleOptions(req, res, my.done))
	if err != nil {
		return nil, cerrors.Errorf("failed to instantiate host module: %w", err)
	}

	// The guest outlives the caller's context, Close ends it.
	runCtx := wazergo.WithModuleInstance(context.WithoutCancel(ctx), ins)

	// Start functions are run by runModule, not during instantiation.
	config := wazero.NewModuleConfig().WithStartFunctions().WithName("")

	wasmModule, err := r.InstantiateWithConfig(runCtx, wasmFile, config)
	if err != nil {
		_ = ins.Close(ctx)
		return nil, cerrors.Errorf("failed to instantiate wasm module: %w", err)
	}

	my.m = wasmModule
	my.instance = ins

	go my.runModule(runCtx)
	return my, nil
}

// SumAsString sends the pair to the guest and waits for its answer.
func (my *Module) SumAsString(ctx context.Context, a, b uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	my.mu.Lock()
	defer my.mu.Unlock()

	select {
	case <-my.done:
		return "", ErrClosed
	case <-my.stopped:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case my.req <- tuple[uint64, uint64]{a, b}:
	}

	// The guest has the request, wait for the answer regardless of ctx so the
	// next caller does not receive it.
	select {
	case resp := <-my.res:
		if resp.status == abi.StatusOverflow {
			return "", cerrors.Errorf("%d + %d: %w", a, b, stringsum.ErrOverflow)
		}
		return resp.value, nil
	case <-my.stopped:
		return "", ErrClosed
	}
}

// Err returns the error the guest stopped with, nil while it is running or if
// it exited cleanly.
func (my *Module) Err() error {
	select {
	case <-my.stopped:
		return my.err
	default:
		return nil
	}
}

// Close asks the guest to return from main and waits until it did.
func (my *Module) Close(ctx context.Context) error {
	my.closeOnce.Do(func() { close(my.done) })

	select {
	case <-my.stopped:
	case <-ctx.Done():
		return cerrors.Errorf("waiting for wasm module to stop: %w", ctx.Err())
	}
	return my.instance.Close(ctx)
}

// runModule is the main loop of the WASM module. It runs in a goroutine and
// blocks until the guest returns from main.
func (my *Module) runModule(ctx context.Context) {
	defer close(my.stopped)

	_, err := my.m.ExportedFunction(abi.ExportStart).Call(ctx)

	// main function returned, close the module right away
	_ = my.m.Close(ctx)

	if err != nil {
		var exitErr *sys.ExitError
		if cerrors.As(err, &exitErr) {
			if exitErr.ExitCode() == 0 { // All good
				err = nil
			}
		}
	}

	if err != nil {
		my.err = cerrors.Errorf("wasm module stopped: %w", err)
		my.logger.Error("wasm module stopped with error", zap.Error(err))
	} else {
		my.logger.Debug("wasm module stopped successfully")
	}
}

// hostModule declares the host module that is exported to the WASM module.
var hostModule wazergo.HostModule[*hostModuleInstance] = hostModuleFunctions{
	abi.ImportSumRequest:  wazergo.F2((*hostModuleInstance).sumRequest),
	abi.ImportSumResponse: F2((*hostModuleInstance).sumResponse),
}

// hostModuleFunctions type implements HostModule, providing the module name,
// map of exported functions, and the ability to create instances of the module
// type.
type hostModuleFunctions wazergo.Functions[*hostModuleInstance]

func (f hostModuleFunctions) Name() string {
	return abi.ModuleName
}

func (f hostModuleFunctions) Functions() wazergo.Functions[*hostModuleInstance] {
	return (wazergo.Functions[*hostModuleInstance])(f)
}

func (f hostModuleFunctions) Instantiate(_ context.Context, opts ...hostModuleOption) (*hostModuleInstance, error) {
	mod := &hostModuleInstance{}
	wazergo.Configure(mod, opts...)
	return mod, nil
}

type hostModuleOption = wazergo.Option[*hostModuleInstance]

func hostModuleOptions(
	requests <-chan tuple[uint64, uint64],
	responses chan<- response,
	done <-chan struct{},
) hostModuleOption {
	return wazergo.OptionFunc(func(m *hostModuleInstance) {
		m.requests = requests
		m.responses = responses
		m.done = done
	})
}

// hostModuleInstance is the host side state of one guest.
type hostModuleInstance struct {
	requests  <-chan tuple[uint64, uint64]
	responses chan<- response
	done      <-chan struct{}
}

func (*hostModuleInstance) Close(context.Context) error { return nil }

func (m *hostModuleInstance) sumRequest(_ context.Context, a, b types.Pointer[types.Uint64]) types.Int32 {
	select {
	case req := <-m.requests:
		a.Store(types.Uint64(req.V1))
		b.Store(types.Uint64(req.V2))
		return types.Int32(abi.RequestReady)
	case <-m.done:
		return types.Int32(abi.RequestStop)
	}
}

func (m *hostModuleInstance) sumResponse(_ context.Context, status types.Int32, value types.String) {
	// value aliases guest memory
	m.responses <- response{status: int32(status), value: strings.Clone(string(value))}
}

type response struct {
	status int32
	value  string
}

type tuple[T1, T2 any] struct {
	V1 T1
	V2 T2
}

// F2 is the Function constructor for functions accepting two parameters and
// returning nothing.
func F2[
	T any,
	P1 types.Param[P1],
	P2 types.Param[P2],
](fn func(T, context.Context, P1, P2)) wazergo.Function[T] {
	var arg1 P1
	var arg2 P2
	params1 := arg1.ValueTypes()
	params2 := arg2.ValueTypes()
	a := len(params1)
	b := len(params2) + a
	return wazergo.Function[T]{
		Params:  []types.Value{arg1, arg2},
		Results: []types.Value{},
		Func: func(this T, ctx context.Context, module api.Module, stack []uint64) {
			var arg1 P1
			var arg2 P2
			var memory = module.Memory()
			fn(this, ctx,
				arg1.LoadValue(memory, stack[0:a:a]),
				arg2.LoadValue(memory, stack[a:b:b]),
			)
		},
	}
}
