package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
)

// PageHandler serves the landing page and the role-scoped pages. Access is
// decided by the gate before these run.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Home handles GET /.
//
// @Summary      Landing page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Router       / [get]
func (h *PageHandler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, pageResponse{Page: "home", User: toPrincipalResponse(middleware.PrincipalFrom(c))})
}

// AdminPage handles GET /admin/page.
//
// @Summary      Admin page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Failure      403  {object}  errorResponse
// @Router       /admin/page [get]
func (h *PageHandler) AdminPage(c echo.Context) error {
	return c.JSON(http.StatusOK, pageResponse{Page: "admin", User: toPrincipalResponse(middleware.PrincipalFrom(c))})
}

// UserPage handles GET /user/page.
//
// @Summary      User page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pageResponse
// @Failure      403  {object}  errorResponse
// @Router       /user/page [get]
func (h *PageHandler) UserPage(c echo.Context) error {
	return c.JSON(http.StatusOK, pageResponse{Page: "user", User: toPrincipalResponse(middleware.PrincipalFrom(c))})
}

// Me returns the principal bound to the current session.
//
// @Summary      Current principal
// @Tags         pages
// @Produce      json
// @Success      200  {object}  principalResponse
// @Failure      401  {object}  errorResponse
// @Router       /me [get]
func (h *PageHandler) Me(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	return c.JSON(http.StatusOK, toPrincipalResponse(p))
}

func toPrincipalResponse(p *domain.Principal) *principalResponse {
	if p == nil {
		return nil
	}
	return &principalResponse{Identifier: p.Identifier, Role: p.Role.Tag(), IssuedAt: p.IssuedAt}
}
