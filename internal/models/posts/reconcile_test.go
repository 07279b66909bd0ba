package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestReconcileResources(t *testing.T) {
	t.Parallel()

	keep := Resource{ID: uuid.New(), Name: "Go Tour", URL: "https://go.dev/tour", Description: "intro"}
	drop := Resource{ID: uuid.New(), Name: "Old", URL: "https://old.example.com"}
	foreign := uuid.New()

	desired := []ResourceInput{
		{ID: &keep.ID, Name: strp("Tour of Go")},
		{Name: strp("Effective Go"), URL: strp("https://go.dev/doc/effective_go")},
		{ID: &foreign, Name: strp("Spec"), URL: strp("https://go.dev/ref/spec")},
	}

	plan := Reconcile([]Resource{keep, drop}, nil, &desired, nil)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, keep.ID, plan.Update[0].ID)
	assert.Equal(t, "Tour of Go", plan.Update[0].Name)
	assert.Equal(t, keep.URL, plan.Update[0].URL, "nil fields keep the stored value")
	assert.Equal(t, "intro", plan.Update[0].Description)

	require.Len(t, plan.Add, 2)
	for _, r := range plan.Add {
		assert.Equal(t, uuid.Nil, r.ID)
	}
	assert.Equal(t, "Effective Go", plan.Add[0].Name)
	assert.Equal(t, "Spec", plan.Add[1].Name)

	assert.Equal(t, []uuid.UUID{drop.ID}, plan.Remove)
	assert.Empty(t, plan.AddTags)
	assert.Empty(t, plan.RemoveTags)
}

func TestReconcileClassifiesEveryItemOnce(t *testing.T) {
	t.Parallel()

	existing := []Resource{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	desired := []ResourceInput{
		{ID: &existing[1].ID},
		{ID: &existing[1].ID, SiteName: strp("dup")},
		{},
	}

	plan := Reconcile(existing, nil, &desired, nil)

	assert.Len(t, plan.Update, 1)
	assert.Equal(t, "dup", plan.Update[0].SiteName)
	assert.Len(t, plan.Add, 1)
	assert.ElementsMatch(t, []uuid.UUID{existing[0].ID, existing[2].ID}, plan.Remove)
	assert.Equal(t, len(existing), len(plan.Update)+len(plan.Remove))
}

func TestReconcileNilDesiredLeavesResourcesAlone(t *testing.T) {
	t.Parallel()

	existing := []Resource{{ID: uuid.New()}}
	tags := []string{"Go", "testing"}

	plan := Reconcile(existing, []string{"go", "web"}, nil, &tags)

	assert.Empty(t, plan.Add)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Remove)
	assert.Equal(t, []string{"testing"}, plan.AddTags)
	assert.Equal(t, []string{"web"}, plan.RemoveTags)
}

func TestReconcileEmptyDesiredRemovesAll(t *testing.T) {
	t.Parallel()

	existing := []Resource{{ID: uuid.New()}, {ID: uuid.New()}}
	desired := []ResourceInput{}
	noTags := []string{}

	plan := Reconcile(existing, []string{"go"}, &desired, &noTags)

	assert.Len(t, plan.Remove, 2)
	assert.Equal(t, []string{"go"}, plan.RemoveTags)
	assert.False(t, plan.Empty())
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "lowercases and trims", in: []string{" Go ", "TESTING"}, want: []string{"go", "testing"}},
		{name: "drops duplicates keeping order", in: []string{"b", "a", "B", "a"}, want: []string{"b", "a"}},
		{name: "drops empty names", in: []string{"", "  ", "x"}, want: []string{"x"}},
		{name: "nil input", in: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestPlanValidate(t *testing.T) {
	t.Parallel()

	ok := Plan{Add: []Resource{{Name: "a", URL: "https://a.example.com"}}}
	require.NoError(t, ok.Validate())

	bad := Plan{Add: []Resource{{Name: "missing url"}}}
	assert.Error(t, bad.Validate())
}
