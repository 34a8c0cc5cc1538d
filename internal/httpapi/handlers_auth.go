package httpapi

import (
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

const activityTypeLogin = "login"

type registerRequest struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialPayload struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Role      string      `json:"role"`
	User      userPayload `json:"user"`
}

type profileRequest struct {
	LastName  *string `json:"nom"`
	FirstName *string `json:"prenom"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

func (handler *httpHandler) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	registration, err := tontine.NewRegistration(request.LastName, request.FirstName, request.Email, request.Password, request.Phone, request.Role)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	user, err := handler.service.Register(ctx.Request.Context(), registration)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithCredential(ctx, http.StatusCreated, user, "registration successful")
}

func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	user, err := handler.service.Authenticate(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.recordActivity(ctx, user.ID, activityTypeLogin, "login")
	handler.respondWithCredential(ctx, http.StatusOK, user, "login successful")
}

func (handler *httpHandler) respondWithCredential(ctx *gin.Context, status int, user tontine.User, message string) {
	token, expiresAt, err := handler.tokens.Issue(user)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, status, credentialPayload{
		Token:     token,
		ExpiresAt: expiresAt,
		Role:      user.Role.String(),
		User:      newUserPayload(user),
	}, message)
}

func (handler *httpHandler) handleVerify(ctx *gin.Context) {
	identity := mustIdentity(ctx)
	user, err := handler.service.Profile(ctx.Request.Context(), identity.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, gin.H{"valid": true, "user": newUserPayload(user)}, "")
}

func (handler *httpHandler) handleProfile(ctx *gin.Context) {
	user, err := handler.service.Profile(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newUserPayload(user), "")
}

func (handler *httpHandler) handleUpdateProfile(ctx *gin.Context) {
	var request profileRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	user, err := handler.service.UpdateProfile(ctx.Request.Context(), mustIdentity(ctx).UserID, tontine.ProfileUpdate{
		LastName:  request.LastName,
		FirstName: request.FirstName,
		Email:     request.Email,
		Phone:     request.Phone,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newUserPayload(user), "profile updated")
}

func (handler *httpHandler) handleSubscribe(ctx *gin.Context) {
	user, err := handler.service.SubscribePremium(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newUserPayload(user), "premium subscription active")
}
