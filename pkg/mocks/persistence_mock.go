// Package mocks provides testify mocks for the persistence and event bus
// boundaries, used for fault injection in engine and service tests.
package mocks

import (
	"context"
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDefinitionRepository is a mock implementation of the
// persistence.DefinitionRepository interface.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) Save(ctx context.Context, def *models.ProcessDefinition) error {
	args := m.Called(ctx, def)

	return args.Error(0)
}

func (m *MockDefinitionRepository) GetByID(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProcessDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) List(ctx context.Context) ([]*models.ProcessDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProcessDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockInstanceRepository is a mock implementation of the
// persistence.InstanceRepository interface.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, id string) (*models.ProcessInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProcessInstance), args.Error(1)
}

func (m *MockInstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.ProcessInstance, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProcessInstance), args.Error(1)
}

func (m *MockInstanceRepository) Save(ctx context.Context, instance *models.ProcessInstance, entries ...models.HistoryEntry) error {
	args := m.Called(ctx, instance, entries)

	return args.Error(0)
}

func (m *MockInstanceRepository) SaveWithTasks(ctx context.Context, instance *models.ProcessInstance, tasks []*models.Task, entries ...models.HistoryEntry) error {
	args := m.Called(ctx, instance, tasks, entries)

	return args.Error(0)
}

// MockTaskRepository is a mock implementation of the
// persistence.TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) Save(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskRepository) ListOverdue(ctx context.Context, before time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

// MockPersistence is a mock implementation of the persistence.Persistence
// interface. The repository accessors return the embedded mocks so tests
// can set expectations directly on them.
type MockPersistence struct {
	mock.Mock

	Definitions *MockDefinitionRepository
	Instances   *MockInstanceRepository
	Tasks       *MockTaskRepository
}

// NewMockPersistence creates a MockPersistence with fresh repository
// mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Definitions: &MockDefinitionRepository{},
		Instances:   &MockInstanceRepository{},
		Tasks:       &MockTaskRepository{},
	}
}

func (m *MockPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return m.Definitions
}

func (m *MockPersistence) InstanceRepository() persistence.InstanceRepository {
	return m.Instances
}

func (m *MockPersistence) TaskRepository() persistence.TaskRepository {
	return m.Tasks
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
