package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/auth"
	"repaytrack/internal/contract"
	"repaytrack/internal/storage"
)

// AuthHandler handles the profile login gate.
type AuthHandler struct {
	provider auth.Provider
	profiles storage.ProfileStorer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider auth.Provider, profiles storage.ProfileStorer) *AuthHandler {
	return &AuthHandler{provider: provider, profiles: profiles}
}

// Handlers maps contract route names to handler functions.
func (h *AuthHandler) Handlers() map[string]gin.HandlerFunc {
	return map[string]gin.HandlerFunc{
		contract.ListProfiles:   h.ListProfiles,
		contract.Login:          h.Login,
		contract.Logout:         h.Logout,
		contract.CurrentProfile: h.Current,
	}
}

// ListProfiles returns the profiles a user can log in to.
// @Summary     List profiles
// @Tags        auth
// @Produce     json
// @Success     200 {array}  models.Profile
// @Failure     500 {object} contract.InternalError
// @Router      /auth/profiles [get]
func (h *AuthHandler) ListProfiles(c *gin.Context) {
	profiles, err := h.profiles.ListProfiles(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Login checks a profile's password and starts a session.
// @Summary     Log in to a profile
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body     contract.LoginRequest true "Credentials"
// @Success     200     {object} contract.LoginResponse
// @Failure     400     {object} contract.ValidationError
// @Failure     401     {object} contract.UnauthorizedError
// @Failure     500     {object} contract.InternalError
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req contract.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	session, err := h.provider.Login(c.Request.Context(), req.ProfileID, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract.LoginResponse{
		Success:   true,
		ProfileID: session.ProfileID,
		Token:     session.Token,
	})
}

// Logout ends the current session.
// @Summary     Log out
// @Tags        auth
// @Produce     json
// @Success     200 {object} contract.LogoutResponse
// @Failure     500 {object} contract.InternalError
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.provider.Logout(c.Request.Context()); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.LogoutResponse{Success: true})
}

// Current reports the logged-in profile.
// @Summary     Get the logged-in profile
// @Tags        auth
// @Produce     json
// @Success     200 {object} contract.CurrentProfileResponse
// @Failure     500 {object} contract.InternalError
// @Router      /auth/current [get]
func (h *AuthHandler) Current(c *gin.Context) {
	id, err := h.provider.Current(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.CurrentProfileResponse{ProfileID: id})
}
