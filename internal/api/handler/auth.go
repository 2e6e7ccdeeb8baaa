package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/retail-ledger/internal/api/middleware"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc *service.AuthService
	ttl time.Duration
}

func NewAuthHandler(svc *service.AuthService, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthHandler{svc: svc, ttl: ttl}
}

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        models.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), service.Registration{Login: req.Login, Password: req.Password, Phone: req.Phone})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.respondToken(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.respondToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondToken(w http.ResponseWriter, r *http.Request, status int, user domain.User) {
	token, err := h.sign(user)
	if err != nil {
		zap.L().Error("sign token failed", zap.Error(err), zap.Int64("user_id", user.ID))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-signing-failed", "Failed to sign token")
		return
	}
	RespondJSON(w, status, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.ttl.Seconds()),
		User:        models.NewUser(user),
	})
}

func (h *AuthHandler) sign(user domain.User) (string, error) {
	now := time.Now()
	id := strconv.FormatInt(user.ID, 10)
	claims := middleware.Claims{
		UserID: id,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    middleware.JWTIssuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		},
	}
	if aud := middleware.JWTAudience(); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.JWTSecret())
}
