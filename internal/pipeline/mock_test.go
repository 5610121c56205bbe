package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/model"
)

// --- Source Mock ---

type mockSource struct {
	mock.Mock
	name model.Source
}

func (m *mockSource) Name() model.Source { return m.name }

func (m *mockSource) Lookup(ctx context.Context, concepts []model.Concept) ([]adapter.Result, error) {
	args := m.Called(ctx, concepts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]adapter.Result), args.Error(1)
}

// forConcept matches a lookup whose first concept has id.
func forConcept(id string) any {
	return mock.MatchedBy(func(cs []model.Concept) bool {
		return len(cs) > 0 && cs[0].ID == id
	})
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load() (*model.Document, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *mockStore) Save(doc *model.Document) error {
	return m.Called(doc).Error(0)
}

func (m *mockStore) Path() string { return "mock://research.json" }
