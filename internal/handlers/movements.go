package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/balance"
	"github.com/vaughan-dsouza/ledger/internal/events"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/middleware"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
	"github.com/vaughan-dsouza/ledger/internal/validate"
)

const maxBalanceDays = 366

type MovementHandler struct {
	base
}

type movementList struct {
	Movements  []models.Movement `json:"movements"`
	Pagination utils.Pagination  `json:"pagination"`
}

type balanceResp struct {
	Summary balance.Summary        `json:"summary"`
	History []balance.DailyBalance `json:"history"`
	Days    int                    `json:"days"`
}

// ---------------------- LIST ----------------------

// List pages through movements, newest first. Users only ever see their
// own; admins may narrow by userId.
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}

	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}

	f := models.MovementFilter{Offset: page.Offset(), Limit: page.Limit, Newest: true}
	q := r.URL.Query()

	if s := strings.TrimSpace(q.Get("type")); s != "" {
		t, err := models.ParseMovementType(s)
		if err != nil {
			h.fail(w, r, log.OpList, apperr.Invalid([]apperr.FieldError{{Field: "type", Message: "type must be INCOME or EXPENSE"}}))
			return
		}
		f.Type = t
	}

	requested, err := userIDs("userId", q.Get("userId"))
	if err != nil && me.Role.Can(models.PermViewAllMovements) {
		h.fail(w, r, log.OpList, err)
		return
	}
	f.UserIDs = middleware.MovementScope(me, requested)

	total, err := h.store.CountMovements(r.Context(), f)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}
	movs, err := h.store.Movements(r.Context(), f)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}

	if !me.Role.Can(models.PermViewAllMovements) {
		for i := range movs {
			movs[i].OwnerName, movs[i].OwnerEmail = "", ""
		}
	}

	utils.JSON(w, http.StatusOK, movementList{Movements: movs, Pagination: page.Result(total)})
}

// ---------------------- CREATE ----------------------

func (h *MovementHandler) Create(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}

	var body validate.MovementInput
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}

	in, err := validate.Movement(body, h.now().UTC())
	if err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}

	m := models.Movement{
		UserID:      me.ID,
		Amount:      in.Amount,
		Description: in.Description,
		Type:        in.Type,
		Date:        in.Date,
	}
	if err := h.store.CreateMovement(r.Context(), &m); err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}

	h.logger.InfoContext(r.Context(), "movement created",
		log.FieldMovementID, m.ID,
		log.FieldUserID, me.ID,
		"type", m.Type)

	ev, err := events.MovementCreated(m)
	h.emit(r.Context(), ev, err)

	utils.JSON(w, http.StatusCreated, m)
}

// ---------------------- BALANCE ----------------------

// Balance returns the totals of every movement in scope and the running
// balance for each of the last days.
func (h *MovementHandler) Balance(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	q := r.URL.Query()
	days := h.cfg.BalanceDays
	if s := strings.TrimSpace(q.Get("days")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxBalanceDays {
			h.fail(w, r, log.OpRead, apperr.Invalid([]apperr.FieldError{{Field: "days", Message: "days must be between 1 and 366"}}))
			return
		}
		days = n
	}

	requested, err := userIDs("userIds", q.Get("userIds"))
	if err != nil && me.Role.Can(models.PermViewAllMovements) {
		h.fail(w, r, log.OpRead, err)
		return
	}

	movs, err := h.store.Movements(r.Context(), models.MovementFilter{
		UserIDs: middleware.MovementScope(me, requested),
	})
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	utils.JSON(w, http.StatusOK, balanceResp{
		Summary: balance.Summarize(movs),
		History: balance.History(movs, days, h.now(), h.location()),
		Days:    days,
	})
}
