package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

func newAuthEnv(t *testing.T) (*runnerEnv, AuthService) {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	userRepo := repos.NewUserRepo(db, log)
	tokenRepo := repos.NewUserTokenRepo(db, log)
	txnRepo := repos.NewCreditTransactionRepo(db, log)
	env := &runnerEnv{db: db, userRepo: userRepo, txnRepo: txnRepo}
	svc := NewAuthService(db, log, userRepo, tokenRepo, txnRepo, "test-secret", time.Hour, 24*time.Hour)
	return env, svc
}

func TestRegisterUserGrantsSignupCredits(t *testing.T) {
	env, svc := newAuthEnv(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, &types.User{
		Email:    "  Teacher@Example.COM ",
		Password: "hunter2hunter2",
		Name:     " Pat ",
	})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Email != "teacher@example.com" {
		t.Fatalf("email normalization: got=%q", user.Email)
	}
	if user.Name != "Pat" {
		t.Fatalf("name trim: got=%q", user.Name)
	}
	if user.Role != types.RoleTeacher {
		t.Fatalf("default role: want=%s got=%s", types.RoleTeacher, user.Role)
	}
	if user.Credits != SignupCredits {
		t.Fatalf("credits: want=%d got=%d", SignupCredits, user.Credits)
	}
	if user.Password == "hunter2hunter2" {
		t.Fatalf("password stored in plain text")
	}

	txns, err := env.txnRepo.ListByUserID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("transaction count: want=1 got=%d", len(txns))
	}
	if txns[0].Amount != SignupCredits || txns[0].BalanceAfter != SignupCredits {
		t.Fatalf("signup txn: want amount=%d balanceAfter=%d got amount=%d balanceAfter=%d",
			SignupCredits, SignupCredits, txns[0].Amount, txns[0].BalanceAfter)
	}
	if txns[0].Description != "Signup bonus" {
		t.Fatalf("signup txn description: got=%q", txns[0].Description)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		user *types.User
	}{
		{"missing email", &types.User{Password: "hunter2hunter2"}},
		{"malformed email", &types.User{Email: "not-an-email", Password: "hunter2hunter2"}},
		{"short password", &types.User{Email: "a@b.com", Password: "short"}},
	}
	for _, tc := range cases {
		if _, err := svc.RegisterUser(ctx, tc.user); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Fatalf("%s: want ErrInvalidArgument got=%v", tc.name, err)
		}
	}
}

func TestRegisterUserRejectsDuplicateEmail(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, &types.User{Email: "a@b.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.RegisterUser(ctx, &types.User{Email: "A@B.com", Password: "hunter2hunter2"})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("duplicate register: want ErrInvalidArgument got=%v", err)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()

	registered, err := svc.RegisterUser(ctx, &types.User{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	access, refresh, user, err := svc.LoginUser(ctx, "a@b.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatalf("expected token pair, got access=%q refresh=%q", access, refresh)
	}
	if user.ID != registered.ID {
		t.Fatalf("user id: want=%s got=%s", registered.ID, user.ID)
	}

	authed, err := svc.SetContextFromToken(ctx, access, refresh)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authed)
	if rd == nil || rd.UserID != registered.ID {
		t.Fatalf("request data: %+v", rd)
	}
	if rd.Role != types.RoleTeacher {
		t.Fatalf("role claim: want=%s got=%s", types.RoleTeacher, rd.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()
	if _, err := svc.RegisterUser(ctx, &types.User{Email: "a@b.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, _, _, err := svc.LoginUser(ctx, "a@b.com", "wrong-password"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("wrong password: want ErrUnauthorized got=%v", err)
	}
	if _, _, _, err := svc.LoginUser(ctx, "nobody@b.com", "hunter2hunter2"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("unknown email: want ErrUnauthorized got=%v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()
	registered, err := svc.RegisterUser(ctx, &types.User{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	_, refresh, _, err := svc.LoginUser(ctx, "a@b.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	authed := requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID:       registered.ID,
		RefreshToken: refresh,
	})
	newAccess, newRefresh, err := svc.RefreshUser(authed)
	if err != nil {
		t.Fatalf("RefreshUser: %v", err)
	}
	if newAccess == "" || newRefresh == "" || newRefresh == refresh {
		t.Fatalf("expected rotated pair, got access=%q refresh=%q", newAccess, newRefresh)
	}

	// The old refresh token is single use.
	if _, _, err := svc.RefreshUser(authed); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("reused refresh token: want ErrUnauthorized got=%v", err)
	}
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()
	registered, err := svc.RegisterUser(ctx, &types.User{Email: "a@b.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	_, refresh, _, err := svc.LoginUser(ctx, "a@b.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}

	authed := requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID:       registered.ID,
		RefreshToken: refresh,
	})
	if err := svc.LogoutUser(authed); err != nil {
		t.Fatalf("LogoutUser: %v", err)
	}
	if _, _, err := svc.RefreshUser(authed); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("refresh after logout: want ErrUnauthorized got=%v", err)
	}
}

func TestSetContextFromTokenRejectsForgery(t *testing.T) {
	_, svc := newAuthEnv(t)
	ctx := context.Background()

	if _, err := svc.SetContextFromToken(ctx, "not-a-jwt", ""); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("garbage token: want ErrUnauthorized got=%v", err)
	}

	// A token signed with a different secret must be rejected.
	other := NewAuthService(nil, newTestLogger(t), nil, nil, nil, "other-secret", time.Hour, 24*time.Hour)
	forged, err := other.(*authService).generateAccessToken(&types.User{ID: uuid.New(), Role: types.RoleTeacher})
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}
	if _, err := svc.SetContextFromToken(ctx, forged, ""); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("forged token: want ErrUnauthorized got=%v", err)
	}
}
