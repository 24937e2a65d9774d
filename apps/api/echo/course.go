package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core/course"
	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
)

type courseApi struct {
	opts    *Options
	svc     *course.Service
	taskSvc *task.Service
}

func registerCourseAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := courseApi{opts: opts, svc: opts.CourseSvc, taskSvc: opts.TaskSvc}

	// un-authed endpoints
	g.GET("/invitations/:token/accept", api.acceptInvitation)

	sg := g.Group("/subjects", authed...)
	sg.GET("", api.querySubjects, requireCapability(user.CapManageSubjects))
	sg.POST("", api.createSubject, requireCapability(user.CapManageSubjects))

	cg := g.Group("/courses", authed...)
	cg.GET("", api.query)
	cg.POST("", api.create, requireCapability(user.CapCreateCourse))
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.GET("/:id/detail", api.detail)
	cg.GET("/:id/participants", api.participants)
	cg.DELETE("/:id/participants/:studentId", api.removeStudent)
	cg.GET("/:id/overview", api.overview)
	cg.POST("/:id/invitations", api.invite)
}

type courseDetailResponse struct {
	course.Detail
	Tasks []task.Task `json:"tasks"`
}

// Handlers

func (api *courseApi) querySubjects(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subjects, err := api.svc.ListSubjects(ctx.Request().Context(), ctxUser(ctx), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *courseApi) createSubject(ctx echo.Context) error {
	var data course.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	data.Clean()
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	subj, err := api.svc.CreateSubject(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.ListForUser(ctx.Request().Context(), ctxUser(ctx))
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	data.Clean()
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) detail(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	caller := ctxUser(ctx)

	d, err := api.svc.Detail(reqCtx, caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course detail")
	}
	tasks, err := api.taskSvc.ListForCourse(reqCtx, caller, d.Course.ID)
	if err != nil {
		return errors.Wrap(err, "listing course tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, courseDetailResponse{Detail: d, Tasks: tasks})
}

func (api *courseApi) participants(ctx echo.Context) error {
	p, err := api.svc.Participants(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing participants")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) removeStudent(ctx echo.Context) error {
	err := api.svc.RemoveStudent(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Student removed successfully"})
}

func (api *courseApi) overview(ctx echo.Context) error {
	o, err := api.taskSvc.CourseOverview(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course overview")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *courseApi) invite(ctx echo.Context) error {
	var data course.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	inv, outcome, err := api.svc.Invite(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "inviting student")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusCreated, inv, outcome)
}

func (api *courseApi) acceptInvitation(ctx echo.Context) error {
	path, outcome, err := api.svc.AcceptInvitation(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	if warning := outcome.Warning(); warning != "" {
		api.opts.Logger.Warn(warning, map[string]interface{}{
			"notify_error":  errString(outcome.NotifyErr),
			"publish_error": errString(outcome.PublishErr),
		})
	}
	return ctx.Redirect(http.StatusFound, api.opts.Conf.FrontendBaseURL+path)
}
