package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/events"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/middleware"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
	"github.com/vaughan-dsouza/ledger/internal/validate"
)

const recentMovements = 10

type UserHandler struct {
	base
}

type userList struct {
	Users      []models.UserListItem `json:"users"`
	Pagination utils.Pagination      `json:"pagination"`
}

type userDetail struct {
	User          models.User       `json:"user"`
	Movements     []models.Movement `json:"movements"`
	MovementCount int               `json:"movementCount"`
}

// pathUserID returns the {id} route parameter. Ids that cannot exist are
// reported as unknown users.
func pathUserID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		return "", apperr.Missing("user")
	}
	return id, nil
}

// ---------------------- LIST ----------------------

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	users, total, err := h.store.ListUsers(r.Context(), search, page.Offset(), page.Limit)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}

	utils.JSON(w, http.StatusOK, userList{Users: users, Pagination: page.Result(total)})
}

// ---------------------- GET ONE ----------------------

// Get returns a user with their latest movements and movement count.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	var out userDetail
	f := models.MovementFilter{UserIDs: []string{id}}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		u, err := h.store.UserByID(ctx, id)
		out.User = u
		return err
	})
	g.Go(func() error {
		recent := f
		recent.Limit, recent.Newest = recentMovements, true
		movs, err := h.store.Movements(ctx, recent)
		out.Movements = movs
		return err
	})
	g.Go(func() error {
		n, err := h.store.CountMovements(ctx, f)
		out.MovementCount = n
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	utils.JSON(w, http.StatusOK, out)
}

// ---------------------- UPDATE ----------------------

// Update edits a profile. Admins may edit anyone, users only themselves,
// and nobody may change their own role.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	id, err := pathUserID(r)
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}
	if err := middleware.CanEditUser(me, id); err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	var body validate.UserInput
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}
	upd, err := validate.User(body)
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}
	if err := middleware.CheckRoleChange(me, id, upd.Role); err != nil {
		h.logger.WarnContext(r.Context(), "self role change rejected", log.FieldUserID, me.ID)
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	if _, err := h.store.UserByID(r.Context(), id); err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	if upd.Email != nil {
		taken, err := h.store.EmailTaken(r.Context(), *upd.Email, id)
		if err != nil {
			h.fail(w, r, log.OpUpdate, err)
			return
		}
		if taken {
			h.fail(w, r, log.OpUpdate, apperr.New(apperr.Conflict, "email already in use"))
			return
		}
	}

	u, err := h.store.UpdateUser(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user updated",
		log.FieldUserID, u.ID,
		"actor_id", me.ID)

	ev, err := events.UserUpdated(u, me.ID, upd)
	h.emit(r.Context(), ev, err)

	utils.JSON(w, http.StatusOK, u)
}
