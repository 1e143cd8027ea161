package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/api/metrics"
	"github.com/videotube/account-service/internal/api/response"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	// ContextUserID is the echo context key the auth middleware stores the
	// caller's user id under.
	ContextUserID = "user_id"
)

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// SessionHandler exposes registration and the session lifecycle over HTTP.
type SessionHandler struct {
	service ports.SessionService
	cookies CookieConfig
}

func NewSessionHandler(service ports.SessionService, cookies CookieConfig) *SessionHandler {
	return &SessionHandler{service: service, cookies: cookies}
}

type registerRequest struct {
	FullName string `form:"fullName" json:"fullName" validate:"notblank"`
	Email    string `form:"email"    json:"email"    validate:"notblank"`
	Username string `form:"username" json:"username" validate:"notblank"`
	Password string `form:"password" json:"password" validate:"notblank"`
}

type loginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Username   string `form:"username"   json:"username"`
	Email      string `form:"email"      json:"email"`
	Password   string `form:"password"   json:"password"`
}

type refreshRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

type sessionResponse struct {
	User         *domain.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        fullName    formData  string  true   "Full name"
// @Param        email       formData  string  true   "Email"
// @Param        username    formData  string  true   "Username"
// @Param        password    formData  string  true   "Password"
// @Param        avatar      formData  file    true   "Avatar image"
// @Param        coverImage  formData  file    false  "Cover image"
// @Success      201  {object}  response.OK{data=domain.PublicUser}
// @Failure      400  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /users/register [post]
func (h *SessionHandler) Register(c echo.Context) (err error) {
	defer func() { metrics.RegistrationsTotal.WithLabelValues(outcome(err, "created")).Inc() }()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.ValidationError("invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.ValidationError(err.Error())
	}

	user, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		Avatar:     formUpload(c, "avatar"),
		CoverImage: formUpload(c, "coverImage"),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, user, "user registered successfully")
}

// Login authenticates a user and establishes a session.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials; identifier may be a username or an email"
// @Success      200   {object}  response.OK{data=sessionResponse}
// @Failure      400   {object}  response.Err
// @Failure      401   {object}  response.Err
// @Failure      404   {object}  response.Err
// @Router       /users/login [post]
func (h *SessionHandler) Login(c echo.Context) (err error) {
	defer func() { h.observe("login", err) }()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.ValidationError("invalid payload")
	}

	res, err := h.service.Login(c.Request().Context(), ports.LoginInput{
		Identifier: firstNonBlank(req.Identifier, req.Username, req.Email),
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookies(c, res.Tokens)
	return response.Success(c, http.StatusOK, sessionResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "user logged in successfully")
}

// Logout ends the caller's session.
//
// @Summary      Logout
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.OK
// @Failure      401  {object}  response.Err
// @Router       /users/logout [post]
func (h *SessionHandler) Logout(c echo.Context) (err error) {
	defer func() { h.observe("logout", err) }()

	userID, _ := c.Get(ContextUserID).(string)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
	}

	if err := h.service.Logout(c.Request().Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.clearSessionCookies(c)
		}
		return err
	}

	h.clearSessionCookies(c)
	return response.Success(c, http.StatusOK, struct{}{}, "user logged out")
}

// Refresh exchanges the refresh token for a new token pair.
//
// @Summary      Refresh the session
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  false  "Refresh token, when not sent as a cookie"
// @Success      200   {object}  response.OK{data=sessionResponse}
// @Failure      401   {object}  response.Err
// @Router       /users/refresh-token [post]
func (h *SessionHandler) Refresh(c echo.Context) (err error) {
	defer func() { h.observe("refresh", err) }()

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return domain.ValidationError("invalid payload")
	}
	token := req.RefreshToken
	if ck, err := c.Cookie(RefreshTokenCookie); err == nil && ck.Value != "" {
		token = ck.Value
	}

	res, err := h.service.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}

	h.setSessionCookies(c, res.Tokens)
	return response.Success(c, http.StatusOK, sessionResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "access token refreshed")
}

func (h *SessionHandler) setSessionCookies(c echo.Context, pair domain.TokenPair) {
	c.SetCookie(h.cookie(AccessTokenCookie, pair.AccessToken))
	c.SetCookie(h.cookie(RefreshTokenCookie, pair.RefreshToken))
}

func (h *SessionHandler) clearSessionCookies(c echo.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		ck := h.cookie(name, "")
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *SessionHandler) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *SessionHandler) observe(op string, err error) {
	metrics.SessionOperationsTotal.WithLabelValues(op, outcome(err, "ok")).Inc()
}

// outcome labels err by its domain kind; success reports ok.
func outcome(err error, ok string) string {
	if err == nil {
		return ok
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return string(de.Kind)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusUnauthorized {
		return string(domain.KindAuth)
	}
	return string(domain.KindInternal)
}

// formUpload returns the first file of the multipart field, or nil when the
// request carries none.
func formUpload(c echo.Context, field string) *ports.Upload {
	fh, err := c.FormFile(field)
	if err != nil || fh == nil || fh.Size == 0 {
		return nil
	}
	return fileUpload(fh)
}

func fileUpload(fh *multipart.FileHeader) *ports.Upload {
	return &ports.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
