package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/caseway/caseway/pkg/mocks"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/otelhelper"
	"github.com/caseway/caseway/pkg/persistence/file"
	"github.com/caseway/caseway/pkg/protocol"
	"github.com/caseway/caseway/pkg/registry"
	"github.com/caseway/caseway/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	cfg := Config{
		Persistence: store,
		Logger:      discardLogger(),
	}

	for _, fn := range mutate {
		fn(&cfg)
	}

	return New(cfg), store
}

func deploy(t *testing.T, store *file.Persistence, def *models.ProcessDefinition) {
	t.Helper()
	require.NoError(t, store.DefinitionRepository().Save(context.Background(), def))
}

func historyActions(instance *models.ProcessInstance) []string {
	actions := make([]string, 0, len(instance.History))
	for _, entry := range instance.History {
		actions = append(actions, entry.Action+":"+entry.StepID)
	}

	return actions
}

func TestStartInstance_StartStepUniqueness(t *testing.T) {
	tests := []struct {
		name    string
		steps   []models.Step
		wantErr error
	}{
		{
			name:    "no start step",
			steps:   []models.Step{testutil.HumanStep("a", "A"), testutil.EndStep("end")},
			wantErr: models.ErrNoStartStep,
		},
		{
			name: "two start steps",
			steps: []models.Step{
				testutil.StartStep("s1"),
				testutil.StartStep("s2"),
				testutil.EndStep("end"),
			},
			wantErr: models.ErrAmbiguousStartStep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store := newTestEngine(t)
			def := testutil.CreateTestDefinition(testutil.WithSteps(tt.steps...))
			deploy(t, store, def)

			_, err := eng.StartInstance(context.Background(), def.ID, nil)
			require.ErrorIs(t, err, tt.wantErr)

			instances, err := store.InstanceRepository().ListByStatus(context.Background(), models.InstanceStatusActive)
			require.NoError(t, err)
			assert.Empty(t, instances, "no instance may be created on a definition error")
		})
	}
}

func TestStartInstance_InactiveDefinition(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithInactive(),
		testutil.WithSteps(testutil.StartStep("s"), testutil.EndStep("end")),
		testutil.WithLinks(testutil.LinkTo("s", "end")),
	)
	deploy(t, store, def)

	_, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.ErrorIs(t, err, ErrDefinitionInactive)
}

func TestLinearAdvance(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review request"),
			testutil.EndStep("end"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review"), testutil.LinkTo("review", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, map[string]any{"amount": 250})
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)
	assert.Equal(t, []string{"review"}, instance.ActiveStepIDs)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review request", tasks[0].Title)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)

	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, map[string]any{"approved": true}))

	instance, err = store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Empty(t, instance.ActiveStepIDs)
	assert.NotNil(t, instance.CompletedAt)
	assert.Equal(t, true, instance.Variables["approved"])
}

func TestExclusiveRoutingDeterminism(t *testing.T) {
	tests := []struct {
		name       string
		variables  map[string]any
		wantActive string
	}{
		{"guard matches", map[string]any{"amount": 5000}, "b"},
		{"default taken", map[string]any{"amount": 500}, "c"},
		{"evaluation failure falls back to default", map[string]any{"amount": "not-a-number"}, "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store := newTestEngine(t)
			def := testutil.CreateTestDefinition(
				testutil.WithSteps(
					testutil.StartStep("s"),
					testutil.ExclusiveGateway("g"),
					testutil.HumanStep("b", "High value"),
					testutil.HumanStep("c", "Standard"),
				),
				testutil.WithLinks(
					testutil.LinkTo("s", "g"),
					testutil.GuardedLink("g", "b", "amount > 1000"),
					testutil.DefaultLink("g", "c"),
				),
			)
			deploy(t, store, def)

			instanceID, err := eng.StartInstance(context.Background(), def.ID, tt.variables)
			require.NoError(t, err)

			instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantActive}, instance.ActiveStepIDs)
		})
	}
}

func TestParallelFanOut(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.ParallelGateway("p"),
			testutil.HumanStep("a", "A"),
			testutil.HumanStep("b", "B"),
			testutil.HumanStep("c", "C"),
		),
		testutil.WithLinks(
			testutil.LinkTo("s", "p"),
			testutil.LinkTo("p", "a"),
			testutil.LinkTo("p", "b"),
			testutil.LinkTo("p", "c"),
		),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, instance.ActiveStepIDs)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestAdvancePersistenceFailureCommitsNothing(t *testing.T) {
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(testutil.StartStep("s"), testutil.EndStep("end")),
		testutil.WithLinks(testutil.LinkTo("s", "end")),
	)

	store := mocks.NewMockPersistence()
	store.Definitions.On("GetByID", mock.Anything, def.ID).Return(def, nil)
	store.Instances.On("Save", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	eng := New(Config{Persistence: store, Logger: discardLogger()})

	_, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.ErrorContains(t, err, "disk full")

	// The instance write is the single commit point: nothing reaches the
	// task repository on its own.
	store.Tasks.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAdvanceAppendsCorrelatedHistory(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review"),
			testutil.EndStep("end"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review"), testutil.LinkTo("review", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"started:s",
		"completed:s",
		"activated:review",
	}, historyActions(instance))

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil))

	instance, err = store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"started:s",
		"completed:s",
		"activated:review",
		"completed:review",
		"finished:end",
	}, historyActions(instance))
}

func TestAdvanceOnFinishedInstanceIsNoOp(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(testutil.StartStep("s"), testutil.EndStep("end")),
		testutil.WithLinks(testutil.LinkTo("s", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	require.Equal(t, models.InstanceStatusCompleted, instance.Status)
	before := len(instance.History)

	require.NoError(t, eng.Advance(context.Background(), instanceID, "s"))

	instance, err = store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Len(t, instance.History, before)
}

func TestAdvanceUnknownInstanceIsNoOp(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Advance(context.Background(), "no-such-instance", "s"))
}

func TestAdvanceStaleStepReferenceIsNoOp(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	before := len(instance.History)

	require.NoError(t, eng.Advance(context.Background(), instanceID, "removed-step"))

	instance, err = store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)
	assert.Equal(t, []string{"review"}, instance.ActiveStepIDs)
	assert.Len(t, instance.History, before)
}

func TestConcurrentTaskCompletions(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.ParallelGateway("p"),
			testutil.HumanStep("a", "A"),
			testutil.HumanStep("b", "B"),
		),
		testutil.WithLinks(
			testutil.LinkTo("s", "p"),
			testutil.LinkTo("p", "a"),
			testutil.LinkTo("p", "b"),
		),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, eng.CompleteTask(context.Background(), task.ID, nil))
		}()
	}

	wg.Wait()

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Empty(t, instance.ActiveStepIDs)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)

	completions := 0

	for _, entry := range instance.History {
		if entry.Action == models.ActionCompleted && (entry.StepID == "a" || entry.StepID == "b") {
			completions++
		}
	}

	assert.Equal(t, 2, completions)
}

func TestRegionalRoutingScenario(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.ExclusiveGateway("g"),
			testutil.HumanStep("eu_task", "Handle EMEA request"),
			testutil.HumanStep("us_task", "Handle US request"),
		),
		testutil.WithLinks(
			testutil.LinkTo("s", "g"),
			testutil.GuardedLink("g", "eu_task", "region == 'EMEA'"),
			testutil.DefaultLink("g", "us_task"),
		),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, map[string]any{"region": "EMEA"})
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Handle EMEA request", tasks[0].Title)

	actions := historyActions(instance)
	assert.Contains(t, actions, "completed:s")
	assert.Contains(t, actions, "completed:g")
	assert.Less(t,
		indexOf(actions, "completed:s"), indexOf(actions, "completed:g"),
		"the start step completes before the gateway")

	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, map[string]any{}))

	instance, err = store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Empty(t, instance.ActiveStepIDs)
}

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}

	return -1
}

func TestAutomatedLoopGuard(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.AutomatedStep("x", "", nil),
			testutil.AutomatedStep("y", "", nil),
		),
		testutil.WithLinks(
			testutil.LinkTo("s", "x"),
			testutil.LinkTo("x", "y"),
			testutil.LinkTo("y", "x"),
		),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Empty(t, instance.ActiveStepIDs, "the looping branch ends once the cap is hit")

	var capped bool

	for _, entry := range instance.History {
		if entry.Action == models.ActionDeadEnd && entry.Comment == "automated step limit reached" {
			capped = true
		}
	}

	assert.True(t, capped, "exceeding the automated step limit leaves a history entry")
}

func TestExclusiveGatewayWithoutLinksDeadEnds(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(testutil.StartStep("s"), testutil.ExclusiveGateway("g")),
		testutil.WithLinks(testutil.LinkTo("s", "g")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Empty(t, instance.ActiveStepIDs)
	assert.Contains(t, historyActions(instance), "dead-end:g")
}

func TestCompleteTask_AlreadyClosed(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review"),
			testutil.EndStep("end"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review"), testutil.LinkTo("review", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)

	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil))
	require.ErrorIs(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil), ErrTaskNotOpen)
}

func TestSuspendAndResume(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review"),
			testutil.EndStep("end"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review"), testutil.LinkTo("review", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)
	require.NoError(t, eng.SuspendInstance(context.Background(), instanceID))

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.ErrorIs(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil), ErrInstanceNotActive)

	require.NoError(t, eng.ResumeInstance(context.Background(), instanceID))
	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil))

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
}

func TestTerminateInstance(t *testing.T) {
	eng, store := newTestEngine(t)
	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)
	require.NoError(t, eng.TerminateInstance(context.Background(), instanceID, "duplicate request"))

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusTerminated, instance.Status)
	assert.Equal(t, "duplicate request", instance.TerminateReason)

	// Dormant tasks can no longer move the instance.
	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.ErrorIs(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil), ErrInstanceNotActive)

	// Terminating again is safe.
	require.NoError(t, eng.TerminateInstance(context.Background(), instanceID, "again"))
}

type staticDirectory struct {
	usersByRole map[string][]string
}

func (d *staticDirectory) UsersByRole(_ context.Context, roleID string) ([]string, error) {
	return d.usersByRole[roleID], nil
}

func (d *staticDirectory) UsersByGroup(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func TestTaskAssignmentPolicy(t *testing.T) {
	tests := []struct {
		name         string
		directory    protocol.DirectoryLookup
		wantAssignee string
	}{
		{
			name:         "single candidate assigned directly",
			directory:    &staticDirectory{usersByRole: map[string][]string{"approver": {"alice"}}},
			wantAssignee: "alice",
		},
		{
			name:         "multiple candidates stay unassigned",
			directory:    &staticDirectory{usersByRole: map[string][]string{"approver": {"alice", "bob"}}},
			wantAssignee: "",
		},
		{
			name:         "no directory configured",
			directory:    nil,
			wantAssignee: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store := newTestEngine(t, func(cfg *Config) {
				cfg.Directory = tt.directory
			})

			review := testutil.HumanStep("review", "Review")
			review.RoleID = "approver"
			review.SLADays = 5

			def := testutil.CreateTestDefinition(
				testutil.WithSteps(testutil.StartStep("s"), review),
				testutil.WithLinks(testutil.LinkTo("s", "review")),
			)
			deploy(t, store, def)

			instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
			require.NoError(t, err)

			tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
			require.NoError(t, err)
			require.Len(t, tasks, 1)

			assert.Equal(t, tt.wantAssignee, tasks[0].Assignee)
			assert.Equal(t, []string{"approver"}, tasks[0].CandidateRoles)
			assert.False(t, tasks[0].DueDate.IsZero())
		})
	}
}

type setVariableFactory struct {
	vars map[string]any
}

func (f *setVariableFactory) ID() string { return "set-variable" }

func (f *setVariableFactory) Schema() map[string]any { return nil }

func (f *setVariableFactory) Create(_ map[string]any) (protocol.StepExecutor, error) {
	return &setVariableExecutor{vars: f.vars}, nil
}

type setVariableExecutor struct {
	vars map[string]any
}

func (e *setVariableExecutor) Execute(_ context.Context, _ protocol.ExecutionEnv) (map[string]any, error) {
	return e.vars, nil
}

func TestAutomatedStepFeedsGuards(t *testing.T) {
	reg := registry.NewRegistry(discardLogger())
	reg.RegisterExecutor(&setVariableFactory{vars: map[string]any{"checked": true}})

	eng, store := newTestEngine(t, func(cfg *Config) {
		cfg.Registry = reg
	})

	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.AutomatedStep("verify", "set-variable", nil),
			testutil.ExclusiveGateway("g"),
			testutil.HumanStep("ok", "Checked"),
			testutil.HumanStep("manual", "Manual check"),
		),
		testutil.WithLinks(
			testutil.LinkTo("s", "verify"),
			testutil.LinkTo("verify", "g"),
			testutil.GuardedLink("g", "ok", "checked == true"),
			testutil.DefaultLink("g", "manual"),
		),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, instance.ActiveStepIDs)
	assert.Equal(t, true, instance.Variables["checked"])
}

func TestEventPublishFailureDoesNotFailTransition(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker down"))

	eng, store := newTestEngine(t, func(cfg *Config) {
		cfg.EventBus = bus
	})

	def := testutil.CreateTestDefinition(
		testutil.WithSteps(testutil.StartStep("s"), testutil.EndStep("end")),
		testutil.WithLinks(testutil.LinkTo("s", "end")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	instance, err := store.InstanceRepository().GetByID(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	bus.AssertCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntryPointsEmitSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	eng, store := newTestEngine(t, func(cfg *Config) {
		cfg.Tracer = provider.Tracer("test")
	})

	def := testutil.CreateTestDefinition(
		testutil.WithSteps(
			testutil.StartStep("s"),
			testutil.HumanStep("review", "Review request"),
		),
		testutil.WithLinks(testutil.LinkTo("s", "review")),
	)
	deploy(t, store, def)

	instanceID, err := eng.StartInstance(context.Background(), def.ID, nil)
	require.NoError(t, err)

	tasks, err := store.TaskRepository().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, eng.CompleteTask(context.Background(), tasks[0].ID, nil))

	names := make([]string, 0)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.Contains(t, names, "engine.start_instance")
	assert.Contains(t, names, "engine.complete_task")

	for _, span := range recorder.Ended() {
		if span.Name() != "engine.start_instance" {
			continue
		}

		attrs := span.Attributes()
		assert.Contains(t, attrs, attribute.String(otelhelper.DefinitionIDKey, def.ID))
		assert.Contains(t, attrs, attribute.String(otelhelper.InstanceIDKey, instanceID))
	}
}
