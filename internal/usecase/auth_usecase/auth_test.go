package auth_test

import (
	"context"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"
	auth "app/internal/usecase/auth_usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUserRepo struct {
	byID    map[int64]*model.User
	byEmail map[string]*model.User
	nextID  int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    map[int64]*model.User{},
		byEmail: map[string]*model.User{},
	}
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = &stored
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	u, ok := r.byID[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	old, ok := r.byID[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if old.Email != user.Email {
		delete(r.byEmail, old.Email)
	}
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = &stored
	return nil
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type stubIssuer struct{}

func (i *stubIssuer) Issue(userID int64, now time.Time) (string, time.Time, error) {
	return "stub-token", now.Add(time.Hour), nil
}

func newAuthFixture() (*auth.RegisterUserUsecase, *auth.LoginUsecase, *memUserRepo) {
	repo := newMemUserRepo()
	clock := &fixedClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	// テストではコスト最小でよい
	hasher := auth.NewBcryptPasswordHasher(4)
	verifier := auth.NewBcryptPasswordVerifier()
	registerUC := auth.NewRegisterUserUsecase(repo, hasher, clock)
	loginUC := auth.NewLoginUsecase(repo, verifier, &stubIssuer{}, clock)
	return registerUC, loginUC, repo
}

// FindByEmailの事前チェックが間に合わず、ユニーク制約まで到達した
// 同時登録を模すリポジトリ
type racingUserRepo struct {
	*memUserRepo
}

func (r *racingUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

func (r *racingUserRepo) Create(ctx context.Context, user *model.User) error {
	return repository.ErrEmailTaken
}

// Test: 登録してそのままログインできる。平文は保存されない。
func TestRegisterThenLogin(t *testing.T) {
	registerUC, loginUC, repo := newAuthFixture()
	ctx := context.Background()

	out, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Name:     "Hanako",
		Email:    "hanako@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.NotZero(t, out.User.ID)
	assert.True(t, out.User.IsActive)
	assert.NotEqual(t, "correct horse battery", out.User.PasswordHash)

	login, err := loginUC.Execute(ctx, auth.LoginInput{
		Email:    "hanako@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "stub-token", login.Token.AccessToken)
	assert.Equal(t, 3600, login.Token.ExpiresIn)

	// 最終ログイン時刻が入る
	stored, err := repo.FindByID(ctx, out.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
}

// Test: emailの形式・パスワードの長さ・弱いパスワードは弾く
func TestRegisterValidation(t *testing.T) {
	registerUC, _, _ := newAuthFixture()
	ctx := context.Background()

	_, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "not-an-email", Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidEmailFormat)

	_, err = registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "a@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "a@example.com", Password: "123456789012",
	})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

// Test: 同じemailは二度登録できない
func TestRegisterDuplicateEmail(t *testing.T) {
	registerUC, _, _ := newAuthFixture()
	ctx := context.Background()

	in := auth.RegisterUserInput{Email: "dup@example.com", Password: "correct horse battery"}
	_, err := registerUC.Execute(ctx, in)
	require.NoError(t, err)

	_, err = registerUC.Execute(ctx, in)
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
}

// Test: 事前チェックをすり抜けてユニーク制約に負けた登録も重複扱い（500にしない）
func TestRegisterLosesUniqueRace(t *testing.T) {
	repo := &racingUserRepo{memUserRepo: newMemUserRepo()}
	clock := &fixedClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	registerUC := auth.NewRegisterUserUsecase(repo, auth.NewBcryptPasswordHasher(4), clock)
	ctx := context.Background()

	_, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "race@example.com", Password: "correct horse battery",
	})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
}

// Test: 間違ったパスワード・未知のemailはどちらも同じエラー
func TestLoginInvalidCredentials(t *testing.T) {
	registerUC, loginUC, _ := newAuthFixture()
	ctx := context.Background()

	_, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "taro@example.com", Password: "correct horse battery",
	})
	require.NoError(t, err)

	_, err = loginUC.Execute(ctx, auth.LoginInput{Email: "taro@example.com", Password: "wrong password!!"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = loginUC.Execute(ctx, auth.LoginInput{Email: "nobody@example.com", Password: "correct horse battery"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// Test: 停止済みユーザーはログイン不可
func TestLoginInactiveUser(t *testing.T) {
	registerUC, loginUC, repo := newAuthFixture()
	ctx := context.Background()

	out, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "banned@example.com", Password: "correct horse battery",
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, out.User.ID)
	require.NoError(t, err)
	stored.IsActive = false
	require.NoError(t, repo.Update(ctx, stored))

	_, err = loginUC.Execute(ctx, auth.LoginInput{Email: "banned@example.com", Password: "correct horse battery"})
	assert.ErrorIs(t, err, auth.ErrUserInactive)
}

func newProfileFixture(t *testing.T) (*auth.ProfileUsecase, *memUserRepo, model.User) {
	t.Helper()
	repo := newMemUserRepo()
	clock := &fixedClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	registerUC := auth.NewRegisterUserUsecase(repo, auth.NewBcryptPasswordHasher(4), clock)
	profileUC := auth.NewProfileUsecase(repo, clock)

	out, err := registerUC.Execute(context.Background(), auth.RegisterUserInput{
		Name:     "Hanako",
		Email:    "hanako@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return profileUC, repo, out.User
}

// Test: 自分のプロフィールが取れる。いないユーザーはErrUserNotFound。
func TestProfileGet(t *testing.T) {
	profileUC, _, user := newProfileFixture(t)
	ctx := context.Background()

	got, err := profileUC.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hanako", got.Name)
	assert.Equal(t, "hanako@example.com", got.Email)

	_, err = profileUC.Get(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

// Test: nameとemailを更新できる。空のフィールドは変更しない。
func TestProfileUpdate(t *testing.T) {
	profileUC, repo, user := newProfileFixture(t)
	ctx := context.Background()

	updated, err := profileUC.Update(ctx, user.ID, auth.UpdateProfileInput{
		Name:  "Hanako T",
		Email: "hanako.t@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hanako T", updated.Name)
	assert.Equal(t, "hanako.t@example.com", updated.Email)

	// emailだけ空 → nameだけ変わる
	updated, err = profileUC.Update(ctx, user.ID, auth.UpdateProfileInput{Name: "Hanako U"})
	require.NoError(t, err)
	assert.Equal(t, "Hanako U", updated.Name)
	assert.Equal(t, "hanako.t@example.com", updated.Email)

	// 新しいemailでログイン照合に使う行が引ける
	stored, err := repo.FindByEmail(ctx, "hanako.t@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	_, err = repo.FindByEmail(ctx, "hanako@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

// Test: 他人のemailへの変更は重複、形式不正は弾く
func TestProfileUpdateEmailConflict(t *testing.T) {
	profileUC, repo, user := newProfileFixture(t)
	clock := &fixedClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	registerUC := auth.NewRegisterUserUsecase(repo, auth.NewBcryptPasswordHasher(4), clock)
	ctx := context.Background()

	_, err := registerUC.Execute(ctx, auth.RegisterUserInput{
		Email: "taken@example.com", Password: "correct horse battery",
	})
	require.NoError(t, err)

	_, err = profileUC.Update(ctx, user.ID, auth.UpdateProfileInput{Email: "taken@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)

	_, err = profileUC.Update(ctx, user.ID, auth.UpdateProfileInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, auth.ErrInvalidEmailFormat)

	// 自分の現在のemailを渡すのはno-opで成功
	_, err = profileUC.Update(ctx, user.ID, auth.UpdateProfileInput{Email: "hanako@example.com"})
	assert.NoError(t, err)
}
