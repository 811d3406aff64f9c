package labtest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/resource"
)

type countFunc func(ctx context.Context, id uuid.UUID) (int, error)

func (f countFunc) CountActive(ctx context.Context, id uuid.UUID) (int, error) { return f(ctx, id) }

func TestLeastLoaded(t *testing.T) {
	t1 := resource.Resource{ID: uuid.New(), Name: "T1"}
	t2 := resource.Resource{ID: uuid.New(), Name: "T2"}
	loads := map[uuid.UUID]int{t1.ID: 0, t2.ID: 3}
	counter := countFunc(func(_ context.Context, id uuid.UUID) (int, error) { return loads[id], nil })

	t.Run("picks the minimum", func(t *testing.T) {
		got, err := LeastLoaded(context.Background(), counter, []resource.Resource{t2, t1})
		require.NoError(t, err)
		assert.Equal(t, t1.ID, got.Technician.ID)
		assert.Equal(t, 0, got.Load)
	})

	t.Run("ties go to the smaller id", func(t *testing.T) {
		loads[t2.ID] = 0
		defer func() { loads[t2.ID] = 3 }()

		want := t1
		if strings.Compare(t2.ID.String(), t1.ID.String()) < 0 {
			want = t2
		}
		for _, order := range [][]resource.Resource{{t1, t2}, {t2, t1}} {
			got, err := LeastLoaded(context.Background(), counter, order)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.Technician.ID)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		_, err := LeastLoaded(context.Background(), counter, nil)
		assert.ErrorIs(t, err, ErrNoAssigneeAvailable)
	})

	t.Run("count failure propagates", func(t *testing.T) {
		boom := errors.New("boom")
		failing := countFunc(func(context.Context, uuid.UUID) (int, error) { return 0, boom })
		_, err := LeastLoaded(context.Background(), failing, []resource.Resource{t1})
		assert.ErrorIs(t, err, boom)
	})
}

func TestBalancer_CandidatePool(t *testing.T) {
	dir := &stubDirectory{resources: map[uuid.UUID]resource.Resource{}}
	lab := uuid.New()
	radiology := uuid.New()
	inLab := dir.add("T1", resource.RoleLabTechnician, &lab)
	elsewhere := dir.add("T2", resource.RoleLabTechnician, &radiology)
	dir.add("Dr", resource.RoleClinician, &lab)

	b := NewBalancer(dir)

	pool, err := b.CandidatePool(context.Background(), &lab)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, inLab, pool[0].ID)

	empty := uuid.New()
	pool, err = b.CandidatePool(context.Background(), &empty)
	require.NoError(t, err)
	assert.Len(t, pool, 2, "empty department falls back to every technician")
	assert.ElementsMatch(t, []uuid.UUID{inLab, elsewhere}, []uuid.UUID{pool[0].ID, pool[1].ID})
	assert.Less(t, pool[0].ID.String(), pool[1].ID.String())
}

func TestBalancer_PickLocksCandidates(t *testing.T) {
	h := newHarness()
	t1 := h.dir.add("T1", resource.RoleLabTechnician, &h.lab)
	t2 := h.dir.add("T2", resource.RoleLabTechnician, &h.lab)
	h.store.seedActive(t2, 3)

	b := NewBalancer(h.dir)
	got, err := b.Pick(context.Background(), memRepo{s: h.store}, &h.lab)
	require.NoError(t, err)
	assert.Equal(t, t1, got.Technician.ID)

	require.Len(t, h.store.locked, 1)
	assert.ElementsMatch(t, []uuid.UUID{t1, t2}, h.store.locked[0])
}
