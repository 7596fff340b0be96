package imported

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/Nokodoko/string-sum/stringsum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRuntime(t testing.TB) wazero.Runtime {
	t.Helper()
	if _, err := os.Stat(DefaultPath); err != nil {
		t.Skipf("%s not built, run go generate: %v", DefaultPath, err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })
	wasi_snapshot_preview1.MustInstantiate(ctx, r)
	return r
}

func newTestModule(t testing.TB) *Module {
	t.Helper()
	r := newTestRuntime(t)

	ctx := context.Background()
	m, err := NewModule(ctx, r, DefaultPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })
	return m
}

func TestModule_SumAsString(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	for _, in := range [][2]uint64{
		{0, 0},
		{2, 3},
		{3, 2},
		{math.MaxUint32, math.MaxUint32},
		{math.MaxUint64, 0},
	} {
		want, err := stringsum.SumAsString(in[0], in[1])
		require.NoError(t, err)

		got, err := m.SumAsString(ctx, in[0], in[1])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestModule_Overflow(t *testing.T) {
	m := newTestModule(t)

	got, err := m.SumAsString(context.Background(), math.MaxUint64, 1)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, stringsum.ErrOverflow), "unexpected error: %v", err)
	assert.Empty(t, got)

	// the guest keeps serving after an overflow
	got, err = m.SumAsString(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestModule_Concurrent(t *testing.T) {
	m := newTestModule(t)

	var g errgroup.Group
	for i := uint64(0); i < 32; i++ {
		g.Go(func() error {
			got, err := m.SumAsString(context.Background(), i, 1000)
			if err != nil {
				return err
			}
			want, _ := stringsum.SumAsString(i, 1000)
			if got != want {
				return cerrors.Errorf("got %q, want %q", got, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestModule_Close(t *testing.T) {
	r := newTestRuntime(t)
	ctx := context.Background()

	m, err := NewModule(ctx, r, DefaultPath)
	require.NoError(t, err)

	got, err := m.SumAsString(ctx, 40, 2)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(closeCtx))
	require.NoError(t, m.Err())

	_, err = m.SumAsString(ctx, 1, 1)
	assert.True(t, cerrors.Is(err, ErrClosed), "unexpected error: %v", err)

	// closing twice is fine
	require.NoError(t, m.Close(closeCtx))
	goleak.VerifyNone(t)
}

func TestModule_CanceledContext(t *testing.T) {
	m := newTestModule(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SumAsString(ctx, 1, 2)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, context.Canceled), "unexpected error: %v", err)

	// the guest never saw the canceled request and keeps serving
	got, err := m.SumAsString(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestNewModule_MissingFile(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := NewModule(ctx, r, "does/not/exist.wasm")
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, os.ErrNotExist), "unexpected error: %v", err)
}

// (module (func (export "_start") unreachable))
var trapWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type: () -> ()
	0x03, 0x02, 0x01, 0x00, // func: type 0
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00, // export "_start" func 0
	0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b, // code: unreachable, end
}

// (module (func (export "_start")))
var returnWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code: end
}

func instantiateGuest(t *testing.T, wasmFile []byte) *Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	m, err := Instantiate(ctx, r, wasmFile)
	require.NoError(t, err)
	return m
}

func TestModule_GuestTraps(t *testing.T) {
	m := instantiateGuest(t, trapWasm)
	ctx := context.Background()

	// the guest never asks for work, the call returns once it stopped
	_, err := m.SumAsString(ctx, 2, 3)
	assert.True(t, cerrors.Is(err, ErrClosed), "unexpected error: %v", err)

	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "unreachable")

	require.NoError(t, m.Close(ctx))
	goleak.VerifyNone(t)
}

func TestModule_GuestReturns(t *testing.T) {
	m := instantiateGuest(t, returnWasm)
	ctx := context.Background()

	_, err := m.SumAsString(ctx, 2, 3)
	assert.True(t, cerrors.Is(err, ErrClosed), "unexpected error: %v", err)
	assert.NoError(t, m.Err())

	require.NoError(t, m.Close(ctx))
}

func TestInstantiate_InvalidGuest(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := Instantiate(ctx, r, []byte("not wasm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to instantiate wasm module")
}
