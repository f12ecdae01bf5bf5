package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/config"
	"github.com/vaughan-dsouza/ledger/internal/events"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/middleware"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
)

// Store is the persistence the handlers need. *db.Store implements it.
type Store interface {
	middleware.UserFinder
	UserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	ListUsers(ctx context.Context, search string, offset, limit int) ([]models.UserListItem, int, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)

	CreateMovement(ctx context.Context, m *models.Movement) error
	Movements(ctx context.Context, f models.MovementFilter) ([]models.Movement, error)
	CountMovements(ctx context.Context, f models.MovementFilter) (int, error)

	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string, expiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, token string) error

	Ping(ctx context.Context) error
}

type Handler struct {
	Auth      *AuthHandler
	Movements *MovementHandler
	Users     *UserHandler
	Reports   *ReportHandler

	authn  *middleware.Authenticator
	store  Store
	logger *log.Logger
}

func NewHandler(store Store, pub events.Publisher, logger *log.Logger, cfg *config.Config) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	shared := base{store: store, pub: pub, cfg: cfg, now: time.Now}

	return &Handler{
		Auth:      &AuthHandler{base: shared.with(logger, log.ComponentAuth)},
		Movements: &MovementHandler{base: shared.with(logger, log.ComponentMovement)},
		Users:     &UserHandler{base: shared.with(logger, log.ComponentUser)},
		Reports:   &ReportHandler{base: shared.with(logger, log.ComponentReport)},
		authn:     middleware.NewAuthenticator(cfg.AccessSecret, store),
		store:     store,
		logger:    logger,
	}
}

// base holds what every handler group shares.
type base struct {
	store  Store
	pub    events.Publisher
	cfg    *config.Config
	logger *log.Logger
	now    func() time.Time
}

func (b base) with(logger *log.Logger, component string) base {
	b.logger = logger.WithComponent(component)
	return b
}

func (b base) location() *time.Location {
	if b.cfg.Location == nil {
		return time.UTC
	}
	return b.cfg.Location
}

// fail writes err to the client, logging it when it is not a client error.
func (b base) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		fields := log.NewFields().WithOperation(op).WithError(err).
			WithRequestID(requestID(r))
		if s, ok := middleware.SessionFrom(r.Context()); ok {
			fields = fields.WithUser(s.User.ID)
		}
		b.logger.ErrorContext(r.Context(), "request failed", fields.ToSlice()...)
	}
	utils.WriteError(w, err)
}

// emit publishes ev. Delivery problems are logged and never reach the client.
func (b base) emit(ctx context.Context, ev events.Event, err error) {
	if err == nil {
		err = b.pub.Publish(ctx, ev)
	}
	if err != nil {
		b.logger.WarnContext(ctx, "event not published",
			log.FieldEvent, ev.Type,
			log.FieldError, err)
	}
}

// actor returns the session user. Routes that call it sit behind
// Authenticator.Require.
func actor(r *http.Request) (models.User, error) {
	s, ok := middleware.SessionFrom(r.Context())
	if !ok {
		return models.User{}, apperr.Unauthorized("authentication required")
	}
	return s.User, nil
}
