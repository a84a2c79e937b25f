package auth

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	"app/internal/repository"
)

// プロフィール更新の入力。空のフィールドは「変更しない」。
type UpdateProfileInput struct {
	Name  string
	Email string
}

// ProfileUsecaseは本人のプロフィールの取得と更新。
// 変更できるのはnameとemailだけで、パスワードや有効フラグはここでは触れない。
type ProfileUsecase struct {
	userRepo repository.UserRepository
	clock    Clock
}

// DI
func NewProfileUsecase(userRepo repository.UserRepository, clock Clock) *ProfileUsecase {
	return &ProfileUsecase{
		userRepo: userRepo,
		clock:    clock,
	}
}

// 本人のプロフィールを取得
func (u *ProfileUsecase) Get(ctx context.Context, userID int64) (model.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return *user, nil
}

// プロフィールを更新する。emailを変える場合は形式と重複をチェックする。
// 事前チェックをすり抜けた同時変更はユニーク制約で弾かれるので重複扱いに変換する。
func (u *ProfileUsecase) Update(ctx context.Context, userID int64, in UpdateProfileInput) (model.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if email != "" && email != user.Email {
		if !isValidEmailFormat(email) {
			return model.User{}, ErrInvalidEmailFormat
		}

		existing, err := u.userRepo.FindByEmail(ctx, email)
		if err == nil && existing != nil && existing.ID != userID {
			return model.User{}, ErrEmailAlreadyExists
		}
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, err
		}

		user.Email = email
	}

	if name != "" {
		user.Name = name
	}

	user.UpdatedAt = u.clock.Now()

	if err := u.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return model.User{}, ErrEmailAlreadyExists
		}
		return model.User{}, err
	}

	return *user, nil
}
