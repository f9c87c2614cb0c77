package middleware

import (
	"context"
	"strings"
	"time"

	"classease_go/config"
	"classease_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Claims carried by every issued token
type Claims struct {
	UserID uint   `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal identifies the authenticated caller. Handlers switch on Role
// instead of decoding the token again.
type Principal struct {
	UserID uint
	Role   string
	JTI    string
	User   *models.User
}

// Auth issues and verifies per-role tokens and enforces the logout blacklist.
type Auth struct {
	Cfg   *config.Config
	DB    *gorm.DB
	Redis *redis.Client
}

func NewAuth(cfg *config.Config, db *gorm.DB, rc *redis.Client) *Auth {
	return &Auth{Cfg: cfg, DB: db, Redis: rc}
}

// GenerateToken creates a new JWT for a user, signed with the secret of the
// user's role and carrying a unique jti for later revocation.
func (a *Auth) GenerateToken(user *models.User) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.Cfg.JWTExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Cfg.SecretForRole(user.Role))
}

// ExtractToken reads the bearer token from the apiKey header, falling back to
// a standard Authorization header.
func ExtractToken(c *fiber.Ctx) string {
	if key := c.Get("apiKey"); key != "" {
		return strings.TrimPrefix(key, "Bearer ")
	}
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return token
}

// Authenticate validates the presented token and stores a Principal in the
// request context. The role claim is peeked without verification only to pick
// the right secret; the signature is then verified once against that secret.
func (a *Auth) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		var unverified Claims
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &unverified); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		secret := a.Cfg.SecretForRole(unverified.Role)
		if secret == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token role",
			})
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
			})
		}

		if a.isRevoked(claims.ID) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token has been revoked",
			})
		}

		// Verify user still exists and is active
		var user models.User
		if err := a.DB.Where("id = ? AND status = ?", claims.UserID, "active").First(&user).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found or inactive",
			})
		}

		c.Locals("principal", &Principal{
			UserID: user.ID,
			Role:   claims.Role,
			JTI:    claims.ID,
			User:   &user,
		})

		return c.Next()
	}
}

// RevokeToken blacklists a token by jti until its expiry. The database row is
// authoritative; Redis fronts it so Authenticate rarely hits the database.
func (a *Auth) RevokeToken(claims *Claims) error {
	expires := time.Now().Add(a.Cfg.JWTExpiresIn)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	row := models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		Role:      claims.Role,
		ExpiresAt: expires,
	}
	if err := a.DB.Create(&row).Error; err != nil {
		return err
	}

	if a.Redis != nil {
		ttl := time.Until(expires)
		if ttl > 0 {
			_ = a.Redis.Set(context.Background(), blacklistKey(claims.ID), "1", ttl).Err()
		}
	}
	return nil
}

func (a *Auth) isRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	if a.Redis != nil {
		if n, err := a.Redis.Exists(context.Background(), blacklistKey(jti)).Result(); err == nil {
			return n > 0
		}
	}
	var count int64
	a.DB.Model(&models.RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, time.Now()).
		Count(&count)
	return count > 0
}

func blacklistKey(jti string) string {
	return "blacklist:jwt:" + jti
}

// RequireRole middleware checks if the caller holds one of the given roles
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := c.Locals("principal").(*Principal)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication",
			})
		}
		for _, role := range roles {
			if p.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}
}

// RequireAdmin allows only admins
func RequireAdmin() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}

// RequireTeacherOrAdmin allows teachers and admins
func RequireTeacherOrAdmin() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin)
}

// CurrentPrincipal returns the authenticated caller from the request context
func CurrentPrincipal(c *fiber.Ctx) (*Principal, error) {
	p, ok := c.Locals("principal").(*Principal)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Principal not found in context")
	}
	return p, nil
}
