package handler

import (
	"context"

	"github.com/hitoshi/authgate/internal/account"
	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/session"
	"github.com/hitoshi/authgate/internal/signup"
)

// --- モック定義 ---

type mockSignupService struct {
	calls    int
	signupFn func(ctx context.Context, req signup.Request) (*signup.Result, error)
}

func (m *mockSignupService) Signup(ctx context.Context, req signup.Request) (*signup.Result, error) {
	m.calls++
	if m.signupFn != nil {
		return m.signupFn(ctx, req)
	}
	return &signup.Result{User: &model.ProviderUser{ID: "user-1", Email: req.Email}, Message: signup.SuccessMessage}, nil
}

type mockAuthService struct {
	signInFn        func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn        func(ctx context.Context, req auth.SignUpRequest) (*auth.SignUpResult, error)
	resendFn        func(ctx context.Context, email string) error
	resetPasswordFn func(ctx context.Context, token, password, confirm string) error
	signOutFn       func(ctx context.Context, token string)
	currentUserFn   func(ctx context.Context, token string) (*model.ProviderUser, error)
	authPageFn      func(ctx context.Context, token string) string
	verifyPageFn    func(ctx context.Context, token, pendingEmail string) (string, *auth.VerifyState)
	callbackFn      func(ctx context.Context, p auth.CallbackParams) string
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAuthService) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.SignUpResult, error) {
	return m.signUpFn(ctx, req)
}

func (m *mockAuthService) ResendVerification(ctx context.Context, email string) error {
	return m.resendFn(ctx, email)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	return m.resetPasswordFn(ctx, token, password, confirm)
}

func (m *mockAuthService) SignOut(ctx context.Context, token string) {
	if m.signOutFn != nil {
		m.signOutFn(ctx, token)
	}
}

func (m *mockAuthService) CurrentUser(ctx context.Context, token string) (*model.ProviderUser, error) {
	return m.currentUserFn(ctx, token)
}

func (m *mockAuthService) AuthPage(ctx context.Context, token string) string {
	if m.authPageFn != nil {
		return m.authPageFn(ctx, token)
	}
	return ""
}

func (m *mockAuthService) VerifyPage(ctx context.Context, token, pendingEmail string) (string, *auth.VerifyState) {
	return m.verifyPageFn(ctx, token, pendingEmail)
}

func (m *mockAuthService) Callback(ctx context.Context, p auth.CallbackParams) string {
	return m.callbackFn(ctx, p)
}

type mockAccountService struct {
	profileFn      func(ctx context.Context, userID string) (*model.Profile, error)
	subscriptionFn func(ctx context.Context, userID string) (*model.Subscription, error)
	overviewFn     func(ctx context.Context, user *model.ProviderUser) (*account.Overview, error)
}

func (m *mockAccountService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockAccountService) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return m.subscriptionFn(ctx, userID)
}

func (m *mockAccountService) Overview(ctx context.Context, user *model.ProviderUser) (*account.Overview, error) {
	return m.overviewFn(ctx, user)
}

type mockGuard struct {
	calls  int
	allow  bool
	userID string
}

func (m *mockGuard) CheckAccess(ctx context.Context, token string) session.Decision {
	m.calls++
	if !m.allow || token == "" {
		return session.Decision{State: session.StateDenied}
	}
	return session.Decision{
		State:   session.StateAllowed,
		Session: &model.Session{AccessToken: token, User: &model.ProviderUser{ID: m.userID}},
	}
}
