package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// TenantIDKey is the context key for the resolved tenant
	TenantIDKey ContextKey = "tenant_id"
)

// ExtractTenant reads the X-Tenant-ID header into the request context.
// Every content route is tenant-scoped, so handlers pair this with
// RequireTenant.
func ExtractTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := c.Request().Header.Get("X-Tenant-ID")
			if tenantID != "" {
				c.Set(string(TenantIDKey), tenantID)
			}
			return next(c)
		}
	}
}

// GetTenant returns the tenant stored by ExtractTenant, or ""
func GetTenant(c echo.Context) string {
	if v, ok := c.Get(string(TenantIDKey)).(string); ok {
		return v
	}
	return ""
}

// RequireTenant returns the tenant or writes a 400 and returns its error
func RequireTenant(c echo.Context) (string, error) {
	tenantID := GetTenant(c)
	if tenantID == "" {
		return "", c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "X-Tenant-ID header is required",
		})
	}
	return tenantID, nil
}
