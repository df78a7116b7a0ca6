package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/salonbook/platform/libs/auth"
	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

var errUnauthorized = errors.New("unauthorized")

// AdminIdentity is the tenant an authorized operator acts for.
type AdminIdentity struct {
	TenantID   string
	TenantSlug string
}

// Authorizer answers "is this caller an admin, and of which tenant".
type Authorizer interface {
	Authorize(r *http.Request) (AdminIdentity, error)
}

// JWTAuthorizer accepts HS256 bearer tokens issued by the login endpoint.
type JWTAuthorizer struct {
	secret string
}

func NewJWTAuthorizer(secret string) *JWTAuthorizer {
	return &JWTAuthorizer{secret: secret}
}

func (a *JWTAuthorizer) Authorize(r *http.Request) (AdminIdentity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") || len(strings.TrimSpace(header)) <= len("Bearer ") {
		return AdminIdentity{}, errUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	claims, err := auth.ParseAndVerifyHS256(token, a.secret)
	if err != nil || claims.Role != auth.RoleAdmin {
		return AdminIdentity{}, errUnauthorized
	}
	return AdminIdentity{TenantID: claims.TenantID, TenantSlug: claims.TenantSlug}, nil
}

type adminCtxKey struct{}

func adminFromContext(ctx context.Context) AdminIdentity {
	id, _ := ctx.Value(adminCtxKey{}).(AdminIdentity)
	return id
}

func requireAdmin(authz Authorizer, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := authz.Authorize(r)
		if err != nil || id.TenantID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminCtxKey{}, id)))
	})
}

// TenantLookup is the slice of the store the login flow reads.
type TenantLookup interface {
	TenantBySlug(ctx context.Context, slug string) (model.Tenant, error)
}

// LoginHandler exchanges a tenant admin key for a signed admin token.
type LoginHandler struct {
	tenants TenantLookup
	secret  string
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewLoginHandler(tenants TenantLookup, secret string, ttl time.Duration, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{tenants: tenants, secret: secret, ttl: ttl, now: time.Now, logger: logger}
}

type loginRequest struct {
	Tenant string `json:"tenant"`
	Key    string `json:"key"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slug := strings.TrimSpace(req.Tenant)
	if slug == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "tenant and key are required")
		return
	}

	tenant, err := h.tenants.TenantBySlug(r.Context(), slug)
	if err != nil {
		if !storage.IsNotFound(err) {
			h.logger.ErrorContext(r.Context(), "admin login tenant lookup failed", "tenant", slug, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !tenant.IsActive || tenant.AdminKeyHash == "" || auth.VerifyKey(tenant.AdminKeyHash, req.Key) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := h.now()
	ttl := h.ttl
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	token, err := auth.IssueAdminToken(tenant.ID, tenant.Slug, h.secret, ttl, now)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "admin token signing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: now.Add(ttl).UTC().Format(time.RFC3339)})
}
