package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studywala/backend/core"
	"github.com/studywala/backend/core/plan"
	exportsvc "github.com/studywala/backend/services/export"
)

type planApi struct {
	svc       *plan.Service
	exportSvc *exportsvc.Service
	validate  *validator.Validate
}

func registerPlanAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *plan.Service,
	exportSvc *exportsvc.Service,
	validate *validator.Validate,
) {
	api := planApi{
		svc:       svc,
		exportSvc: exportSvc,
		validate:  validate,
	}

	pg := g.Group("/plans", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create)

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	dg.GET("/sessions", api.querySessions)
	dg.POST("/sessions", api.addSession)
	dg.PUT("/sessions/:sessionID", api.updateSession)
	dg.DELETE("/sessions/:sessionID", api.removeSession)

	dg.POST("/goals", api.addGoal)
	dg.PUT("/goals/:goalID", api.updateGoal)

	dg.GET("/analytics", api.analytics)
	dg.GET("/recommendations", api.recommendations)
	dg.GET("/export", api.export)
}

// Handlers

func (api *planApi) query(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	plans, err := api.svc.Query(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying plans")
	}
	if plans == nil {
		plans = []plan.StudyPlan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) create(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.NewPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), ident)
	if err != nil {
		return errors.Wrap(err, "fetching plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) update(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.UpdatePlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), ident, data)
	if err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) destroy(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.SoftDelete(ctx.Request().Context(), ctx.Param("id"), ident); err != nil {
		return errors.Wrap(err, "deactivating plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *planApi) querySessions(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	filter, err := bindSessionFilter(ctx)
	if err != nil {
		return err
	}

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), ctx.Param("id"), ident, filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *planApi) addSession(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.AddSession(ctx.Request().Context(), ctx.Param("id"), ident, data)
	if err != nil {
		return errors.Wrap(err, "adding session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *planApi) updateSession(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.UpdateSession(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sessionID"), ident, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *planApi) removeSession(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.RemoveSession(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sessionID"), ident); err != nil {
		return errors.Wrap(err, "removing session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *planApi) addGoal(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.NewGoal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGoal")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	goal, err := api.svc.AddGoal(ctx.Request().Context(), ctx.Param("id"), ident, data)
	if err != nil {
		return errors.Wrap(err, "adding goal")
	}
	return ctx.JSON(http.StatusCreated, goal)
}

func (api *planApi) updateGoal(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data plan.UpdateGoal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGoal")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	goal, err := api.svc.UpdateGoal(ctx.Request().Context(), ctx.Param("id"), ctx.Param("goalID"), ident, data)
	if err != nil {
		return errors.Wrap(err, "updating goal")
	}
	return ctx.JSON(http.StatusOK, goal)
}

func (api *planApi) analytics(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	analytics, err := api.svc.Analytics(ctx.Request().Context(), ctx.Param("id"), ident)
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, analytics)
}

func (api *planApi) recommendations(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	recs, err := api.svc.Recommendations(ctx.Request().Context(), ctx.Param("id"), ident)
	if err != nil {
		return errors.Wrap(err, "computing recommendations")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *planApi) export(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	format := exportsvc.Format(ctx.QueryParam("format"))
	if format == "" {
		format = exportsvc.FormatJSON
	}
	if !format.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "format", Error: exportsvc.ErrUnknownFormat.Error()})
	}

	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), ident)
	if err != nil {
		return errors.Wrap(err, "fetching plan")
	}

	out, err := api.exportSvc.Export(p, format)
	if err != nil {
		return errors.Wrap(err, "exporting plan")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", format.Filename(p)))
	return ctx.Blob(http.StatusOK, format.ContentType(), out)
}

// bindSessionFilter parses the session query params; dates are RFC3339.
func bindSessionFilter(ctx echo.Context) (plan.SessionFilter, error) {
	var filter plan.SessionFilter

	parse := func(param string) (time.Time, error) {
		val := ctx.QueryParam(param)
		if val == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: param, Error: "must be a RFC3339 timestamp"})
		}
		return t, nil
	}

	var err error
	if filter.StartDate, err = parse("start_date"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parse("end_date"); err != nil {
		return filter, err
	}
	filter.Status = plan.SessionStatus(ctx.QueryParam("status"))
	return filter, nil
}
