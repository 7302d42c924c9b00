// Package service orchestrates the stores, ownership checks, toggles, cascades
// and read-model pipelines behind each API operation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/cascade"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/metrics"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/repositories"
	"github.com/vidstream/backend/internal/storage"
	"github.com/vidstream/backend/internal/toggle"
	"github.com/vidstream/backend/internal/validation"
)

// AssetReaper deletes stored media after the owning record is gone.
type AssetReaper interface {
	Enqueue(ctx context.Context, assets ...storage.Asset) error
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Users         repositories.UserRepository
	Videos        repositories.VideoRepository
	Comments      repositories.CommentRepository
	Tweets        repositories.TweetRepository
	Playlists     repositories.PlaylistRepository
	Likes         repositories.LikeRepository
	Subscriptions repositories.SubscriptionRepository
	Source        pipeline.Source

	// Assets may be nil, in which case uploads fail with a dependency error.
	Assets  storage.AssetStore
	Reaper  AssetReaper
	Hasher  auth.Hasher
	Metrics *metrics.Collectors
	Now     func() time.Time
}

// Services groups the per-entity services.
type Services struct {
	Users         *UserService
	Videos        *VideoService
	Comments      *CommentService
	Tweets        *TweetService
	Likes         *LikeService
	Subscriptions *SubscriptionService
	Playlists     *PlaylistService
}

// New wires the services over deps.
func New(deps Deps) *Services {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Hasher == nil {
		deps.Hasher = auth.BcryptHasher{}
	}

	b := &base{
		deps:      deps,
		composer:  pipeline.NewComposer(deps.Source),
		validator: validation.New(),
	}

	toggleOpts := []toggle.Option{toggle.WithClock(deps.Now)}
	var onFail cascade.FailureObserver
	if deps.Metrics != nil {
		toggleOpts = append(toggleOpts, toggle.WithObserver(deps.Metrics.ObserveToggle))
		onFail = deps.Metrics.ObserveCascadeFailure
	}
	cascader := cascade.NewCoordinator(deps.Likes, deps.Comments, onFail)

	return &Services{
		Users:    &UserService{base: b},
		Videos:   &VideoService{base: b, cascade: cascader},
		Comments: &CommentService{base: b, cascade: cascader},
		Tweets:   &TweetService{base: b, cascade: cascader},
		Likes: &LikeService{
			base:   b,
			engine: toggle.NewEngine(likeRelations{repo: deps.Likes}, toggleOpts...),
		},
		Subscriptions: &SubscriptionService{
			base:   b,
			engine: toggle.NewEngine(subscriptionRelations{repo: deps.Subscriptions}, toggleOpts...),
		},
		Playlists: &PlaylistService{base: b},
	}
}

type base struct {
	deps      Deps
	composer  *pipeline.Composer
	validator *validation.Validator
}

func (b *base) now() time.Time { return b.deps.Now() }

func newID() string { return uuid.NewString() }

// requireUser fails with Unauthenticated when actor no longer has an account.
func (b *base) requireUser(ctx context.Context, actor string) error {
	if actor == "" {
		return apperr.Unauthenticated("sign in required")
	}
	if _, err := b.deps.Users.FindByID(ctx, actor); err != nil {
		if isNotFound(err) {
			return apperr.Unauthenticated("account no longer exists")
		}
		return translate(err, "user")
	}
	return nil
}

// page composes p and windows the result.
func (b *base) page(ctx context.Context, p pipeline.Pipeline, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	records, err := b.composer.Collect(ctx, p)
	if err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "records")
	}
	return paginate.Paginate(records, req), nil
}

// one composes p and returns its single record, or NotFound.
func (b *base) one(ctx context.Context, p pipeline.Pipeline, what string) (pipeline.Record, error) {
	for rec, err := range b.composer.Compose(ctx, p) {
		if err != nil {
			return nil, translate(err, what)
		}
		return rec, nil
	}
	return nil, apperr.NotFound(what + " not found")
}

// store uploads a temporary file.
func (b *base) store(ctx context.Context, path string, kind storage.ResourceKind, what string) (storage.Asset, error) {
	if b.deps.Assets == nil {
		return storage.Asset{}, apperr.Dependency("upload "+what, storage.ErrStorageUnavailable)
	}
	asset, err := b.deps.Assets.Store(ctx, path, kind)
	if err != nil {
		return storage.Asset{}, apperr.Dependency("upload "+what, err)
	}
	return asset, nil
}

// compensate synchronously deletes assets uploaded by a failed operation and
// joins any deletion failure onto cause.
func (b *base) compensate(ctx context.Context, cause error, assets ...storage.Asset) error {
	if b.deps.Assets == nil {
		return cause
	}
	errs := []error{cause}
	for _, a := range assets {
		if a.PublicID == "" {
			continue
		}
		if err := b.deps.Assets.Delete(ctx, a.PublicID, a.Kind); err != nil {
			logging.FromContext(ctx).Error("compensating asset delete failed", "publicId", a.PublicID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reap schedules post-commit removal of assets that are no longer referenced.
func (b *base) reap(ctx context.Context, assets ...storage.Asset) {
	if b.deps.Reaper == nil {
		return
	}
	if err := b.deps.Reaper.Enqueue(context.WithoutCancel(ctx), assets...); err != nil {
		logging.FromContext(ctx).Error("schedule asset removal", "error", err)
	}
}

// translate maps store errors onto apperr kinds. Errors that already carry a
// kind pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, repositories.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperr.Unavailable(what+" temporarily unavailable", err)
	default:
		return apperr.Internal("load "+what, err)
	}
}

// ownerJoin attaches the public profile of the record's owner as "owner".
func ownerJoin(localField string) pipeline.Join {
	return pipeline.Join{
		From:         "users",
		LocalField:   localField,
		ForeignField: "id",
		As:           "owner",
		One:          true,
		Pipeline:     pipeline.Inner().Project("id", "username", "fullName", "avatar").Stages(),
	}
}
