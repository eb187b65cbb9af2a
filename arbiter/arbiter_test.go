package arbiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/meshtvprep/container"
)

func TestMutualExclusion(t *testing.T) {
	var (
		a       = New(afero.NewMemMapFs(), map[Kind]int{StateFile: 0})
		holders int32
		maxSeen int32
		mu      sync.Mutex
		order   []int
		g, ctx  = errgroup.WithContext(context.Background())
	)
	for w := 0; w < 2; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				h, err := a.Obtain(ctx, StateFile, "/out/s0.mtv")
				if err != nil {
					return err
				}
				n := atomic.AddInt32(&holders, 1)
				if n > atomic.LoadInt32(&maxSeen) {
					atomic.StoreInt32(&maxSeen, n)
				}
				mu.Lock()
				order = append(order, w, w)
				mu.Unlock()
				h.File.Root().SetAttr("writes", i)
				time.Sleep(10 * time.Microsecond)
				atomic.AddInt32(&holders, -1)
				if err = a.Relinquish(h); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxSeen)
	require.Len(t, order, 200)
	// every ownership window is entered and left by the same worker
	for i := 0; i < len(order); i += 2 {
		assert.Equal(t, order[i], order[i+1])
	}
	assert.Equal(t, 1, a.Created())
}

func TestObtain(t *testing.T) {
	fs := afero.NewMemMapFs()
	{ // Existing files are truncated on first use only
		old, err := container.Create(fs, "/out/m.mtv")
		require.NoError(t, err)
		old.Root().SetAttr("stale", 1)
		require.NoError(t, old.Close())

		a := New(fs, nil)
		require.NoError(t, a.With(context.Background(), MeshFile, "/out/m.mtv", func(f *container.File) error {
			_, err := f.Root().Attr("stale")
			assert.ErrorIs(t, err, container.ErrNotFound)
			f.Mkdir("/mesh/domain_0").SetAttr("nzones", 4)
			return nil
		}))
		require.NoError(t, a.With(context.Background(), MeshFile, "/out/m.mtv", func(f *container.File) error {
			d, err := f.Cd("/mesh/domain_0")
			require.NoError(t, err)
			n, err := d.Attr("nzones")
			assert.Equal(t, 4, n)
			return err
		}))
	}
	{ // Held resources
		a := New(fs, nil)
		h, err := a.Obtain(context.Background(), StateFile, "/out/s.mtv")
		require.NoError(t, err)
		_, err = a.TryObtain(StateFile, "/out/s.mtv")
		assert.ErrorIs(t, err, ErrHeld)
		other, err := a.TryObtain(StateFile, "/out/s2.mtv")
		require.NoError(t, err)
		require.NoError(t, a.Relinquish(other))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		_, err = a.Obtain(ctx, StateFile, "/out/s.mtv")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, a.Relinquish(h))
		assert.ErrorIs(t, a.Relinquish(h), ErrNotHolder)
		assert.ErrorIs(t, a.Relinquish(nil), ErrNotHolder)
	}
	{ // The guard releases on error and panic
		a := New(fs, nil)
		boom := errors.New("boom")
		err := a.With(context.Background(), StateFile, "/out/e.mtv", func(*container.File) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Panics(t, func() {
			_ = a.With(context.Background(), StateFile, "/out/e.mtv", func(*container.File) error { panic("write failed") })
		})
		h, err := a.TryObtain(StateFile, "/out/e.mtv")
		require.NoError(t, err)
		require.NoError(t, a.Relinquish(h))
	}
	{ // Unwritable targets fail and free the resource
		a := New(afero.NewReadOnlyFs(fs), nil)
		_, err := a.Obtain(context.Background(), StateFile, "/out/ro.mtv")
		assert.Error(t, err)
		_, err = a.TryObtain(StateFile, "/out/ro.mtv")
		assert.NotErrorIs(t, err, ErrHeld)
	}
}

func TestRoots(t *testing.T) {
	assert.Equal(t, 1, ElectRoot([][]int{{4, 5}, {2, 3}, {6}}))
	assert.Equal(t, 0, ElectRoot([][]int{{0}, {1}}))
	assert.Equal(t, 2, ElectRoot([][]int{nil, {}, {7}}))
	assert.Equal(t, -1, ElectRoot([][]int{nil, nil}))
	a := New(afero.NewMemMapFs(), map[Kind]int{StateFile: 1, RootFile: 0})
	assert.True(t, a.IsRootForGroup(StateFile, 1))
	assert.False(t, a.IsRootForGroup(StateFile, 0))
	assert.True(t, a.IsRootForGroup(RootFile, 0))
	assert.False(t, a.IsRootForGroup(MeshFile, 0))
}
