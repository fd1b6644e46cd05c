package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type runnerEnv struct {
	db           *gorm.DB
	userRepo     repos.UserRepo
	planRepo     repos.LessonPlanRepo
	txnRepo      repos.CreditTransactionRepo
	artifactRepo repos.ArtifactRepo
	notifier     *fakeNotifier
	bucket       *fakeBucket
}

func newRunnerEnv(t *testing.T, generate func(ctx context.Context, req GenerationRequest) (*GenerationResult, error)) (*runnerEnv, AgentRunService) {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)

	userRepo := repos.NewUserRepo(db, log)
	planRepo := repos.NewLessonPlanRepo(db, log)
	txnRepo := repos.NewCreditTransactionRepo(db, log)
	artifactRepo := repos.NewArtifactRepo(db, log)
	classroomRepo := repos.NewClassroomRepo(db, log)
	profileRepo := repos.NewStudentProfileRepo(db, log)

	registry := agent.NewRegistry()
	if err := registry.Register(NewLessonPlanCapability(classroomRepo, profileRepo)); err != nil {
		t.Fatalf("register capability: %v", err)
	}

	env := &runnerEnv{
		db:           db,
		userRepo:     userRepo,
		planRepo:     planRepo,
		txnRepo:      txnRepo,
		artifactRepo: artifactRepo,
		notifier:     &fakeNotifier{},
		bucket:       &fakeBucket{},
	}
	ledger := NewCreditLedgerService(db, log, userRepo, txnRepo)
	svc := NewAgentRunService(
		db,
		log,
		planRepo,
		userRepo,
		artifactRepo,
		ledger,
		env.bucket,
		&fakeOpenAI{generate: generate},
		registry,
		env.notifier,
		time.Minute,
	)
	return env, svc
}

func (env *runnerEnv) seedUser(t *testing.T, credits int) *types.User {
	t.Helper()
	user := &types.User{
		ID:       uuid.New(),
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Password: "hashed",
		Name:     "Test Teacher",
		Role:     types.RoleTeacher,
		Credits:  credits,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (env *runnerEnv) seedClassroom(t *testing.T, ownerID uuid.UUID) *types.Classroom {
	t.Helper()
	room := &types.Classroom{
		ID:           uuid.New(),
		StaticFields: types.StaticFields{OwnerID: ownerID},
		Name:         "4B",
		GradeLevel:   "4",
		Subject:      "Math",
	}
	if err := env.db.Create(room).Error; err != nil {
		t.Fatalf("seed classroom: %v", err)
	}
	return room
}

func (env *runnerEnv) seedPlan(t *testing.T, userID, parentID uuid.UUID, status agent.Status) *types.LessonPlan {
	t.Helper()
	plan := &types.LessonPlan{
		ID:     uuid.New(),
		UserID: userID,
		Fields: agent.Fields{
			ParentResourceID:   parentID,
			ParentResourceType: "classroom",
			Status:             status,
			Metadata:           datatypes.JSON([]byte(`{}`)),
		},
		Topic: "Fractions",
	}
	if err := env.db.Create(plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func (env *runnerEnv) reloadPlan(t *testing.T, id uuid.UUID) *types.LessonPlan {
	t.Helper()
	plans, err := env.planRepo.GetByIDs(context.Background(), nil, []uuid.UUID{id})
	if err != nil || len(plans) == 0 {
		t.Fatalf("reload plan: %v", err)
	}
	return plans[0]
}

// scriptedGeneration drives the four lesson-plan tools the way the model
// would, then reports 50 000 tokens used.
func scriptedGeneration(t *testing.T) func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	return func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		calls := []struct {
			tool string
			args map[string]any
		}{
			{"setTitle", map[string]any{"title": "Fractions Fundamentals"}},
			{"addObjective", map[string]any{"objective": "Recognize halves and quarters"}},
			{"addObjective", map[string]any{"objective": "Compare simple fractions"}},
			{"addSection", map[string]any{"heading": "Warm Up", "content": "Fold paper into halves."}},
			{"addSection", map[string]any{"heading": "Main Activity", "content": "Fraction strips in pairs."}},
			{"setDuration", map[string]any{"minutes": float64(45)}},
		}
		for _, call := range calls {
			tool := findTool(t, req.Tools, call.tool)
			if _, err := tool.Execute(ctx, call.args); err != nil {
				return nil, err
			}
		}
		return &GenerationResult{
			Text:  "Lesson plan drafted.",
			Model: "gpt-4o-mini",
			Steps: len(calls) + 1,
			Usage: GenerationUsage{
				TotalTokens:      50000,
				PromptTokens:     40000,
				CompletionTokens: 10000,
			},
		}, nil
	}
}

func TestStartRunSuccess(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	got, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if got.Status != agent.StatusCompleted {
		t.Fatalf("status: want=%s got=%s", agent.StatusCompleted, got.Status)
	}

	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusCompleted {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusCompleted, stored.Status)
	}
	if stored.Error != "" {
		t.Fatalf("stored error: want empty got=%q", stored.Error)
	}
	if stored.Title != "Fractions Fundamentals" {
		t.Fatalf("title: want=%q got=%q", "Fractions Fundamentals", stored.Title)
	}
	if stored.Duration != 45 {
		t.Fatalf("duration: want=45 got=%d", stored.Duration)
	}
	if !strings.Contains(stored.Content, "## Warm Up") || !strings.Contains(stored.Content, "## Main Activity") {
		t.Fatalf("content missing sections: %q", stored.Content)
	}

	// 50 000 tokens at 0.00001 credits/token rounds up to 1 credit.
	if stored.Cost != 1 {
		t.Fatalf("cost: want=1 got=%d", stored.Cost)
	}
	var meta map[string]any
	if err := json.Unmarshal(stored.Metadata, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta["model"] != "gpt-4o-mini" {
		t.Fatalf("metadata model: want=%q got=%v", "gpt-4o-mini", meta["model"])
	}
	if meta["tokensUsed"] != float64(50000) {
		t.Fatalf("metadata tokensUsed: want=50000 got=%v", meta["tokensUsed"])
	}

	users, err := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if err != nil || len(users) == 0 {
		t.Fatalf("reload user: %v", err)
	}
	if users[0].Credits != 99 {
		t.Fatalf("balance: want=99 got=%d", users[0].Credits)
	}

	txns, err := env.txnRepo.ListByUserID(context.Background(), nil, user.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("transaction count: want=1 got=%d", len(txns))
	}
	if txns[0].Amount != -1 || txns[0].BalanceAfter != 99 {
		t.Fatalf("transaction: want amount=-1 balanceAfter=99 got amount=%d balanceAfter=%d", txns[0].Amount, txns[0].BalanceAfter)
	}
	if txns[0].Description != "Agent execution: lesson_plan" {
		t.Fatalf("transaction description: got=%q", txns[0].Description)
	}

	artifacts, err := env.artifactRepo.ListByParentID(context.Background(), nil, plan.ID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifact count: want=2 got=%d", len(artifacts))
	}
	for _, a := range artifacts {
		wantURL := fmt.Sprintf("/mock-storage/%s/%s", plan.ID, a.FileName)
		if a.URL != wantURL {
			t.Fatalf("artifact url: want=%q got=%q", wantURL, a.URL)
		}
	}

	wantStatuses := []agent.Status{
		agent.StatusGatheringContext,
		agent.StatusGenerating,
		agent.StatusCompilingArtifacts,
		agent.StatusCompleted,
	}
	if len(env.notifier.statuses) != len(wantStatuses) {
		t.Fatalf("status broadcasts: want=%d got=%d (%v)", len(wantStatuses), len(env.notifier.statuses), env.notifier.statuses)
	}
	for i, want := range wantStatuses {
		if env.notifier.statuses[i] != want {
			t.Fatalf("status broadcast %d: want=%s got=%s", i, want, env.notifier.statuses[i])
		}
	}
	if env.notifier.updates == 0 {
		t.Fatalf("expected incremental lesson plan updates during generation")
	}
}

func TestStartRunContextFailure(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	// Parent classroom does not exist.
	plan := env.seedPlan(t, user.ID, uuid.New(), agent.StatusIdle)

	_, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if err == nil {
		t.Fatalf("StartRun: expected context resolution failure")
	}
	var runErr *agent.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error type: want *agent.RunError got %T", err)
	}
	if runErr.Stage != agent.StageContext {
		t.Fatalf("failure stage: want=%s got=%s", agent.StageContext, runErr.Stage)
	}

	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusFailed {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusFailed, stored.Status)
	}
	if !strings.Contains(stored.Error, "classroom") {
		t.Fatalf("stored error: want classroom mention got=%q", stored.Error)
	}

	txns, _ := env.txnRepo.ListByUserID(context.Background(), nil, user.ID)
	if len(txns) != 0 {
		t.Fatalf("transaction count after failure: want=0 got=%d", len(txns))
	}
	artifacts, _ := env.artifactRepo.ListByParentID(context.Background(), nil, plan.ID)
	if len(artifacts) != 0 {
		t.Fatalf("artifact count after failure: want=0 got=%d", len(artifacts))
	}
	users, _ := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if users[0].Credits != 100 {
		t.Fatalf("balance after failure: want=100 got=%d", users[0].Credits)
	}
}

func TestStartRunGenerationFailure(t *testing.T) {
	env, svc := newRunnerEnv(t, func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		return nil, fmt.Errorf("upstream unavailable")
	})
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	_, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if err == nil {
		t.Fatalf("StartRun: expected generation failure")
	}
	var runErr *agent.RunError
	if !errors.As(err, &runErr) || runErr.Stage != agent.StageGeneration {
		t.Fatalf("failure stage: want=%s got=%v", agent.StageGeneration, err)
	}

	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusFailed {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusFailed, stored.Status)
	}
	users, _ := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if users[0].Credits != 100 {
		t.Fatalf("balance after generation failure: want=100 got=%d", users[0].Credits)
	}
}

func TestStartRunInsufficientCredits(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 5)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	_, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if !errors.Is(err, apperrors.ErrInsufficientCredits) {
		t.Fatalf("error: want ErrInsufficientCredits got=%v", err)
	}
	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusIdle {
		t.Fatalf("stored status: guard must not touch state, want=%s got=%s", agent.StatusIdle, stored.Status)
	}
}

func TestStartRunUnauthorized(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	if _, err := svc.StartRun(context.Background(), plan.ID); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("error: want ErrUnauthorized got=%v", err)
	}

	other := env.seedUser(t, 100)
	if _, err := svc.StartRun(authedCtx(other.ID), plan.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("foreign plan: want ErrNotFound got=%v", err)
	}
}

func TestStartRunRejectsInFlight(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusGenerating)

	if _, err := svc.StartRun(authedCtx(user.ID), plan.ID); !errors.Is(err, apperrors.ErrRunInProgress) {
		t.Fatalf("error: want ErrRunInProgress got=%v", err)
	}
	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusGenerating {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusGenerating, stored.Status)
	}
}

func TestStartRunRejectsCompleted(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusCompleted)

	if _, err := svc.StartRun(authedCtx(user.ID), plan.ID); !errors.Is(err, apperrors.ErrNotRestartable) {
		t.Fatalf("error: want ErrNotRestartable got=%v", err)
	}
}

func TestStartRunRestartsFromFailed(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusFailed)
	if err := env.db.Model(&types.LessonPlan{}).Where("id = ?", plan.ID).
		Update("error", "previous run broke").Error; err != nil {
		t.Fatalf("seed failure state: %v", err)
	}

	got, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("StartRun from failed: %v", err)
	}
	if got.Status != agent.StatusCompleted {
		t.Fatalf("status: want=%s got=%s", agent.StatusCompleted, got.Status)
	}
	stored := env.reloadPlan(t, plan.ID)
	if stored.Error != "" {
		t.Fatalf("stored error after restart: want empty got=%q", stored.Error)
	}
}

func TestStartRunSurvivesClientDisconnect(t *testing.T) {
	var cancelRequest context.CancelFunc
	generate := scriptedGeneration(t)
	env, svc := newRunnerEnv(t, func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		// The caller goes away mid-generation; the run must still finish.
		cancelRequest()
		return generate(ctx, req)
	})
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	ctx, cancel := context.WithCancel(authedCtx(user.ID))
	defer cancel()
	cancelRequest = cancel

	got, err := svc.StartRun(ctx, plan.ID)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if got.Status != agent.StatusCompleted {
		t.Fatalf("status: want=%s got=%s", agent.StatusCompleted, got.Status)
	}

	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusCompleted {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusCompleted, stored.Status)
	}
	users, _ := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if users[0].Credits != 99 {
		t.Fatalf("balance: want=99 got=%d", users[0].Credits)
	}
}

func TestStartRunDisconnectDuringFailureStillRecordsIt(t *testing.T) {
	var cancelRequest context.CancelFunc
	env, svc := newRunnerEnv(t, func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		cancelRequest()
		return nil, fmt.Errorf("stream interrupted")
	})
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	ctx, cancel := context.WithCancel(authedCtx(user.ID))
	defer cancel()
	cancelRequest = cancel

	_, err := svc.StartRun(ctx, plan.ID)
	var runErr *agent.RunError
	if !errors.As(err, &runErr) || runErr.Stage != agent.StageGeneration {
		t.Fatalf("failure stage: want=%s got=%v", agent.StageGeneration, err)
	}

	// The failure must be durably recorded even though the request context
	// is gone, so the resource stays restartable.
	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusFailed {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusFailed, stored.Status)
	}
	if stored.Error == "" {
		t.Fatalf("stored error: want non-empty")
	}

	if _, err := svc.StartRun(authedCtx(user.ID), plan.ID); errors.Is(err, apperrors.ErrRunInProgress) || errors.Is(err, apperrors.ErrNotRestartable) {
		t.Fatalf("restart after recorded failure: got=%v", err)
	}
}

func TestStartRunArtifactFailureKeepsCharge(t *testing.T) {
	env, svc := newRunnerEnv(t, scriptedGeneration(t))
	env.bucket.uploadErr = fmt.Errorf("disk full")
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	_, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	var runErr *agent.RunError
	if !errors.As(err, &runErr) || runErr.Stage != agent.StageArtifacts {
		t.Fatalf("failure stage: want=%s got=%v", agent.StageArtifacts, err)
	}

	stored := env.reloadPlan(t, plan.ID)
	if stored.Status != agent.StatusFailed {
		t.Fatalf("stored status: want=%s got=%s", agent.StatusFailed, stored.Status)
	}
	if stored.Error == "" {
		t.Fatalf("stored error: want non-empty")
	}
	// The debit happened before compilation broke and stays committed.
	if stored.Cost != 1 {
		t.Fatalf("cost: want=1 got=%d", stored.Cost)
	}
	users, _ := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if users[0].Credits != 99 {
		t.Fatalf("balance: want=99 got=%d", users[0].Credits)
	}
	txns, _ := env.txnRepo.ListByUserID(context.Background(), nil, user.ID)
	if len(txns) != 1 {
		t.Fatalf("transaction count: want=1 got=%d", len(txns))
	}
	if txns[0].Amount != -1 || txns[0].BalanceAfter != 99 {
		t.Fatalf("transaction: want amount=-1 balanceAfter=99 got amount=%d balanceAfter=%d", txns[0].Amount, txns[0].BalanceAfter)
	}
	artifacts, _ := env.artifactRepo.ListByParentID(context.Background(), nil, plan.ID)
	if len(artifacts) != 0 {
		t.Fatalf("artifact count: want=0 got=%d", len(artifacts))
	}
}

func TestStartRunZeroCostSkipsDebit(t *testing.T) {
	env, svc := newRunnerEnv(t, func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		tool := findTool(t, req.Tools, "setTitle")
		if _, err := tool.Execute(ctx, map[string]any{"title": "Tiny"}); err != nil {
			return nil, err
		}
		return &GenerationResult{Text: "done", Model: "gpt-4o-mini", Steps: 1}, nil
	})
	user := env.seedUser(t, 100)
	room := env.seedClassroom(t, user.ID)
	plan := env.seedPlan(t, user.ID, room.ID, agent.StatusIdle)

	got, err := svc.StartRun(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if got.Status != agent.StatusCompleted {
		t.Fatalf("status: want=%s got=%s", agent.StatusCompleted, got.Status)
	}
	if got.Cost != 0 {
		t.Fatalf("cost: want=0 got=%d", got.Cost)
	}
	txns, _ := env.txnRepo.ListByUserID(context.Background(), nil, user.ID)
	if len(txns) != 0 {
		t.Fatalf("zero-cost run must not write a transaction, got=%d", len(txns))
	}
	users, _ := env.userRepo.GetByIDs(context.Background(), nil, []uuid.UUID{user.ID})
	if users[0].Credits != 100 {
		t.Fatalf("balance: want=100 got=%d", users[0].Credits)
	}
}
