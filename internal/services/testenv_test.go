package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Classroom{},
		&types.StudentProfile{},
		&types.LessonPlan{},
		&types.CreditTransaction{},
		&types.Artifact{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func authedCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: userID,
		Role:   types.RoleTeacher,
	})
}

type fakeNotifier struct {
	mu        sync.Mutex
	statuses  []agent.Status
	updates   int
	artifacts int
	balances  []int
}

func (n *fakeNotifier) RunStatusChanged(plan *types.LessonPlan) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, plan.Status)
}

func (n *fakeNotifier) LessonPlanUpdated(plan *types.LessonPlan) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates++
}

func (n *fakeNotifier) ArtifactCreated(artifact *types.Artifact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.artifacts++
}

func (n *fakeNotifier) CreditBalanceChanged(userID uuid.UUID, balance int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances = append(n.balances, balance)
}

type fakeBucket struct {
	mu        sync.Mutex
	uploads   int
	uploadErr error
}

func (b *fakeBucket) UploadArtifacts(ctx context.Context, parentID uuid.UUID, drafts []agent.ArtifactDraft) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	urls := make([]string, len(drafts))
	for i, d := range drafts {
		urls[i] = b.PublicURL(parentID, d.FileName)
	}
	return urls, nil
}

func (b *fakeBucket) PublicURL(parentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("/mock-storage/%s/%s", parentID, fileName)
}

func (b *fakeBucket) StorageRoot() string { return "" }

type fakeOpenAI struct {
	generate func(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

func (f *fakeOpenAI) GenerateWithTools(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	return f.generate(ctx, req)
}

func findTool(t *testing.T, tools []agent.Tool, name string) agent.Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	return agent.Tool{}
}
