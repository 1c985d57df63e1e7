package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-program-api/internal/utils"
)

// TenantHeader lets super admins act inside a specific tenant.
const TenantHeader = "X-Tenant-ID"

// TenantContext resolves the tenant of the request. The token claim wins; the
// header is honoured only for super admins and is rejected when it contradicts
// the claim of a regular user.
func TenantContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claimed, _ := c.Locals("tenant_id").(uint)
		superAdmin, _ := c.Locals("super_admin").(bool)

		header := strings.TrimSpace(c.Get(TenantHeader))
		if header != "" {
			parsed, err := strconv.ParseUint(header, 10, 64)
			if err != nil || parsed == 0 {
				return utils.Fail(c, fiber.StatusBadRequest, "invalid tenant header", nil)
			}
			requested := uint(parsed)
			switch {
			case superAdmin:
				c.Locals("tenant_id", requested)
			case claimed != 0 && claimed != requested:
				return utils.Fail(c, fiber.StatusForbidden, "tenant mismatch", nil)
			}
		}

		if tenantID, _ := c.Locals("tenant_id").(uint); tenantID == 0 && !superAdmin {
			return utils.Fail(c, fiber.StatusForbidden, "tenant context required", nil)
		}

		return c.Next()
	}
}
