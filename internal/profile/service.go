// Package profile はプロフィールの取得・作成・更新のドメインロジックを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/repository"
)

// maxEnsureAttempts はfind-or-createの最大試行回数。
// 競合で作成に失敗した場合は再読込するため、通常は2回目で確定する。
const maxEnsureAttempts = 3

// Recorder はプロフィール操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordProfileCreated()
	RecordProfileConflict()
	RecordProfileUpdated()
}

type nopRecorder struct{}

func (nopRecorder) RecordProfileCreated()  {}
func (nopRecorder) RecordProfileConflict() {}
func (nopRecorder) RecordProfileUpdated()  {}

// Service はプロフィール管理のサービス層。
type Service struct {
	repo     repository.ProfileRepository
	recorder Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewService(repo repository.ProfileRepository, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{repo: repo, recorder: recorder}
}

// EnsureProfile はemailに対応するプロフィールを取得し、なければ作成する。
// 同一emailの初回ログインが同時に走った場合、作成側はmodel.ErrDuplicateEmailを受け取るが、
// 呼び出し元には伝えずに既存行を読み直して返す。
func (s *Service) EnsureProfile(ctx context.Context, email string) (*model.Profile, error) {
	for attempt := 1; attempt <= maxEnsureAttempts; attempt++ {
		existing, err := s.repo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find profile: %w", err)
		}
		if existing != nil {
			return existing, nil
		}

		created, err := s.repo.Create(ctx, email)
		if err == nil {
			s.recorder.RecordProfileCreated()
			slog.Info("profile created",
				slog.Int64("profile_id", created.ID),
				slog.String("email", email),
			)
			return created, nil
		}
		if !errors.Is(err, model.ErrDuplicateEmail) {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}

		s.recorder.RecordProfileConflict()
		slog.Info("concurrent profile creation detected, re-reading",
			slog.String("email", email),
			slog.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("failed to ensure profile after %d attempts", maxEnsureAttempts)
}

// Get はセッションのemailに対応するプロフィールを取得する。
// セッション確立時に必ず作成されているため、存在しない場合はmodel.ErrProfileMissingを返す。
func (s *Service) Get(ctx context.Context, email string) (*model.Profile, error) {
	p, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return nil, model.ErrProfileMissing
	}
	return p, nil
}

// Update は検証済みの入力でプロフィールを更新し、更新後の値を返す。
// emailは変更しない。
func (s *Service) Update(ctx context.Context, email string, in UpdateInput) (*model.Profile, error) {
	p, err := s.repo.Update(ctx, email, in.Nickname, in.Address)
	if errors.Is(err, model.ErrProfileNotFound) {
		return nil, fmt.Errorf("%w: %w", model.ErrProfileMissing, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.recorder.RecordProfileUpdated()
	slog.Info("profile updated",
		slog.Int64("profile_id", p.ID),
	)
	return p, nil
}
