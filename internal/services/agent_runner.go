package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

const (
	// MinimumCreditsToStart gates run admission; the actual debit is the
	// token-derived cost, not this floor.
	MinimumCreditsToStart = 10

	creditsPerToken    = 0.00001
	generationMaxSteps = 10
)

// AgentRunService drives one agent resource through its full lifecycle:
// admission guards, the atomic claim, context resolution, tool-calling
// generation, billing, artifact compilation and the terminal transition.
// Every checkpoint is persisted before the next step begins, so a crash
// leaves the resource in its last recorded state rather than limbo.
type AgentRunService interface {
	StartRun(ctx context.Context, planID uuid.UUID) (*types.LessonPlan, error)
}

type agentRunService struct {
	db           *gorm.DB
	log          *logger.Logger
	planRepo     repos.LessonPlanRepo
	userRepo     repos.UserRepo
	artifactRepo repos.ArtifactRepo
	ledger       CreditLedgerService
	bucket       BucketService
	ai           OpenAIClient
	registry     *agent.Registry
	notifier     Notifier

	generationTimeout time.Duration
}

func NewAgentRunService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.LessonPlanRepo,
	userRepo repos.UserRepo,
	artifactRepo repos.ArtifactRepo,
	ledger CreditLedgerService,
	bucket BucketService,
	ai OpenAIClient,
	registry *agent.Registry,
	notifier Notifier,
	generationTimeout time.Duration,
) AgentRunService {
	if generationTimeout <= 0 {
		generationTimeout = 5 * time.Minute
	}
	return &agentRunService{
		db:                db,
		log:               baseLog.With("service", "AgentRunService"),
		planRepo:          planRepo,
		userRepo:          userRepo,
		artifactRepo:      artifactRepo,
		ledger:            ledger,
		bucket:            bucket,
		ai:                ai,
		registry:          registry,
		notifier:          notifier,
		generationTimeout: generationTimeout,
	}
}

func (s *agentRunService) StartRun(ctx context.Context, planID uuid.UUID) (*types.LessonPlan, error) {
	// Admission guards run before any state is touched, in fixed order.
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}

	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return nil, apperrors.ErrUserNotFound
	}
	user := users[0]
	if user.Credits < MinimumCreditsToStart {
		return nil, apperrors.ErrInsufficientCredits
	}

	plans, err := s.planRepo.GetByIDs(ctx, nil, []uuid.UUID{planID})
	if err != nil {
		return nil, fmt.Errorf("load lesson plan: %w", err)
	}
	if len(plans) == 0 || plans[0] == nil || plans[0].UserID != rd.UserID {
		return nil, apperrors.ErrNotFound
	}
	plan := plans[0]

	capability, err := s.registry.Lookup(plan.Kind())
	if err != nil {
		return nil, err
	}

	// The claim is the first checkpoint; losing the race surfaces as
	// ErrRunInProgress / ErrNotRestartable without side effects.
	if err := s.planRepo.ClaimForRun(ctx, nil, planID); err != nil {
		return nil, err
	}
	// A claimed run must reach completed or failed on its own terms. The
	// caller may disconnect at any point, so everything past the claim runs
	// detached from request cancellation; without this a mid-run cancel
	// would also doom the MarkFailed write and strand the resource
	// in-flight forever.
	runCtx := context.WithoutCancel(ctx)
	plan.Status = agent.StatusGatheringContext
	plan.Error = ""
	plan.Cost = 0
	plan.Metadata = datatypes.JSON([]byte(`{}`))
	s.notifier.RunStatusChanged(plan)

	s.log.Info("agent run started", "plan_id", plan.ID, "user_id", user.ID)

	contextObj, err := capability.ResolveContext(runCtx, plan)
	if err != nil {
		return plan, s.fail(runCtx, plan, agent.StageContext, err)
	}

	if err := s.advance(runCtx, plan, agent.StatusGenerating); err != nil {
		return plan, s.fail(runCtx, plan, agent.StagePersistence, err)
	}

	save := func(c context.Context) error {
		if err := s.planRepo.SaveGenerated(c, nil, plan); err != nil {
			return err
		}
		s.notifier.LessonPlanUpdated(plan)
		return nil
	}

	genCtx, cancel := context.WithTimeout(runCtx, s.generationTimeout)
	result, err := s.ai.GenerateWithTools(genCtx, GenerationRequest{
		System:   capability.SystemPrompt(contextObj),
		Prompt:   buildUserPrompt(plan.Kind(), contextObj),
		Tools:    capability.BuildTools(plan, save),
		MaxSteps: generationMaxSteps,
	})
	cancel()
	if err != nil {
		return plan, s.fail(runCtx, plan, agent.StageGeneration, err)
	}

	if err := s.bill(runCtx, plan, result); err != nil {
		return plan, s.fail(runCtx, plan, agent.StageBilling, err)
	}

	if err := s.advance(runCtx, plan, agent.StatusCompilingArtifacts); err != nil {
		return plan, s.fail(runCtx, plan, agent.StagePersistence, err)
	}

	if err := s.compile(runCtx, plan, capability); err != nil {
		return plan, s.fail(runCtx, plan, agent.StageArtifacts, err)
	}

	if err := s.advance(runCtx, plan, agent.StatusCompleted); err != nil {
		return plan, s.fail(runCtx, plan, agent.StagePersistence, err)
	}

	s.log.Info("agent run completed",
		"plan_id", plan.ID,
		"cost", plan.Cost,
		"tokens", result.Usage.TotalTokens,
		"steps", result.Steps,
	)
	return plan, nil
}

// advance persists one forward transition and broadcasts it.
func (s *agentRunService) advance(ctx context.Context, plan *types.LessonPlan, to agent.Status) error {
	if err := s.planRepo.Transition(ctx, nil, plan.ID, plan.Status, to); err != nil {
		return err
	}
	plan.Status = to
	s.notifier.RunStatusChanged(plan)
	return nil
}

// bill persists cost and metadata, then debits the ledger. A zero cost
// (tiny runs round up from zero tokens only) skips the debit so no
// zero-amount transaction rows appear.
func (s *agentRunService) bill(ctx context.Context, plan *types.LessonPlan, result *GenerationResult) error {
	cost := int(math.Ceil(float64(result.Usage.TotalTokens) * creditsPerToken))
	metadata, err := json.Marshal(map[string]any{
		"model":            result.Model,
		"tokensUsed":       result.Usage.TotalTokens,
		"promptTokens":     result.Usage.PromptTokens,
		"completionTokens": result.Usage.CompletionTokens,
	})
	if err != nil {
		return err
	}
	if err := s.planRepo.UpdateFields(ctx, nil, plan.ID, map[string]interface{}{
		"cost":     cost,
		"metadata": datatypes.JSON(metadata),
	}); err != nil {
		return fmt.Errorf("persist cost: %w", err)
	}
	plan.Cost = cost
	plan.Metadata = datatypes.JSON(metadata)

	if cost == 0 {
		return nil
	}
	balance, err := s.ledger.Debit(ctx, plan.UserID, cost, fmt.Sprintf("Agent execution: %s", plan.Kind()))
	if err != nil {
		return err
	}
	s.notifier.CreditBalanceChanged(plan.UserID, balance)
	return nil
}

func (s *agentRunService) compile(ctx context.Context, plan *types.LessonPlan, capability agent.Capability) error {
	drafts, err := capability.CompileArtifacts(plan)
	if err != nil {
		return err
	}
	urls, err := s.bucket.UploadArtifacts(ctx, plan.ID, drafts)
	if err != nil {
		return err
	}

	artifacts := make([]*types.Artifact, 0, len(drafts))
	for i, d := range drafts {
		artifacts = append(artifacts, &types.Artifact{
			ID:       uuid.New(),
			ParentID: plan.ID,
			FileName: d.FileName,
			FileType: types.ArtifactFileType(d.FileType),
			URL:      urls[i],
			Content:  d.Content,
		})
	}
	if _, err := s.artifactRepo.Create(ctx, nil, artifacts); err != nil {
		return fmt.Errorf("persist artifacts: %w", err)
	}
	for _, a := range artifacts {
		s.notifier.ArtifactCreated(a)
	}
	return nil
}

// fail records the terminal failure and re-raises it wrapped with the stage
// that broke. Committed debits and artifacts stay committed.
func (s *agentRunService) fail(ctx context.Context, plan *types.LessonPlan, stage agent.Stage, cause error) error {
	runErr := agent.NewRunError(stage, cause)
	if mErr := s.planRepo.MarkFailed(ctx, nil, plan.ID, runErr.Error()); mErr != nil {
		s.log.Error("failed to record run failure", "plan_id", plan.ID, "error", mErr)
	}
	plan.Status = agent.StatusFailed
	plan.Error = runErr.Error()
	s.notifier.RunStatusChanged(plan)
	s.log.Warn("agent run failed", "plan_id", plan.ID, "stage", string(stage), "error", cause)
	return runErr
}

func buildUserPrompt(kind string, contextObj map[string]any) string {
	noun := strings.ReplaceAll(kind, "_", " ")
	if topic, ok := contextObj["topic"].(string); ok && topic != "" {
		return fmt.Sprintf("Create a %s about %q using the available tools.", noun, topic)
	}
	return fmt.Sprintf("Create a %s using the available tools.", noun)
}
