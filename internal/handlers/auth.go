package handlers

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/middleware"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
	"github.com/vaughan-dsouza/ledger/internal/validate"
)

type AuthHandler struct {
	base
}

// ----------- Request/Response DTOs -------------

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

var errBadCredentials = apperr.Unauthorized("invalid credentials")

// -------------- SIGN UP ----------------------

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req validate.SignUpInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	req, err := validate.SignUp(req)
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	u := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     models.RoleUser,
	}
	if err := h.store.CreateUser(r.Context(), &u); err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user signed up", log.FieldUserID, u.ID)
	utils.JSON(w, http.StatusCreated, u)
}

// -------------- LOGIN ------------------------

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "login", err)
		return
	}

	u, err := h.store.UserByEmail(r.Context(), req.Email)
	if apperr.KindOf(err) == apperr.NotFound {
		h.fail(w, r, "login", errBadCredentials)
		return
	}
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		h.fail(w, r, "login", errBadCredentials)
		return
	}

	access, refresh, err := h.issue(u)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	if err := h.store.SaveRefreshToken(r.Context(), u.ID, refresh.token, refresh.expires); err != nil {
		h.fail(w, r, "login", err)
		return
	}

	h.respondTokens(w, access, refresh)
}

// ---------------- REFRESH ---------------------

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	claims, err := utils.VerifyToken(req.RefreshToken, h.cfg.RefreshSecret)
	if err != nil {
		h.fail(w, r, "refresh", apperr.Unauthorized("invalid token"))
		return
	}

	u, err := h.store.UserByID(r.Context(), claims.UserID())
	if apperr.KindOf(err) == apperr.NotFound {
		h.fail(w, r, "refresh", apperr.Unauthorized("invalid token"))
		return
	}
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	access, refresh, err := h.issue(u)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	err = h.store.RotateRefreshToken(r.Context(), u.ID, req.RefreshToken, refresh.token, refresh.expires)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}

	h.respondTokens(w, access, refresh)
}

// -------------- LOGOUT -----------------------

// Logout drops the refresh token named in the body, if any, and clears
// the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength != 0 {
		var req refreshReq
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			h.fail(w, r, "logout", err)
			return
		}
		if req.RefreshToken != "" {
			if err := h.store.DeleteRefreshToken(r.Context(), req.RefreshToken); err != nil {
				h.fail(w, r, "logout", err)
				return
			}
		}
	}

	http.SetCookie(w, h.cookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

// -------------- ME (protected) ----------------

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := actor(r)
	if err != nil {
		h.fail(w, r, "me", err)
		return
	}
	utils.JSON(w, http.StatusOK, u)
}

type issued struct {
	token   string
	expires time.Time
}

func (h *AuthHandler) issue(u models.User) (access, refresh issued, err error) {
	access.token, access.expires, err = utils.GenerateToken(u.ID, u.Email, h.cfg.AccessSecret, h.cfg.AccessTTL)
	if err != nil {
		return issued{}, issued{}, err
	}
	refresh.token, refresh.expires, err = utils.GenerateToken(u.ID, u.Email, h.cfg.RefreshSecret, h.cfg.RefreshTTL)
	if err != nil {
		return issued{}, issued{}, err
	}
	return access, refresh, nil
}

func (h *AuthHandler) respondTokens(w http.ResponseWriter, access, refresh issued) {
	http.SetCookie(w, h.cookie(access.token, access.expires))
	utils.JSON(w, http.StatusOK, tokenResp{
		AccessToken:  access.token,
		RefreshToken: refresh.token,
		ExpiresIn:    int64(h.cfg.AccessTTL.Seconds()),
	})
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
