package echoapi

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core/task"
	"github.com/trezcool/edusys/core/user"
)

type taskApi struct {
	opts *Options
	svc  *task.Service
}

func registerTaskAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := taskApi{opts: opts, svc: opts.TaskSvc}

	cg := g.Group("/courses", authed...)
	cg.GET("/:id/tasks", api.queryForCourse)
	cg.POST("/:id/tasks", api.create, requireCapability(user.CapCreateTask))

	tg := g.Group("/tasks", authed...)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
	tg.POST("/:id/submit", api.submit, requireCapability(user.CapSubmitTask))
	tg.GET("/:id/files/:fileId", api.taskFile)
	tg.GET("/:id/submissions", api.submissions)
	tg.GET("/:id/submissions/:assignmentId/files/:fileId", api.submissionFile)
	tg.PATCH("/:id/submissions/:assignmentId", api.extendDueDate)
	tg.DELETE("/:id/submissions/:assignmentId", api.unassign)
	tg.GET("/:id/grade/:studentId", api.gradingView, requireCapability(user.CapGrade))
	tg.POST("/:id/grade/:studentId", api.grade, requireCapability(user.CapGrade))
	tg.PUT("/:id/grade/:studentId", api.grade, requireCapability(user.CapGrade))

	gradesMws := append(append([]echo.MiddlewareFunc{}, authed...), requireCapability(user.CapViewOwnGrades))
	g.GET("/grades", api.grades, gradesMws...)
}

type (
	NewTaskRequest struct {
		Title       string `form:"title" validate:"required,max=100"`
		Description string `form:"description" validate:"required"`
		Deadline    string `form:"deadline" validate:"required"`
	}

	UpdateTaskRequest struct {
		Title       string `json:"title" validate:"max=100"`
		Description string `json:"description"`
		Deadline    string `json:"deadline"`
	}

	ExtendDueDateRequest struct {
		LateDueDate string `json:"late_due_date"`
	}

	taskResponse struct {
		Task      task.Task   `json:"task"`
		TaskFiles []task.File `json:"task_files"`
	}
)

func parseDeadline(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return task.ParseTime(raw)
}

// Handlers

func (api *taskApi) queryForCourse(ctx echo.Context) error {
	tasks, err := api.svc.ListForCourse(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	data := NewTaskRequest{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		Deadline:    ctx.FormValue("deadline"),
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}
	deadline, err := task.ParseTime(data.Deadline)
	if err != nil {
		return err
	}

	uploads, release, err := bindUploads(ctx)
	if err != nil {
		return err
	}
	defer release()

	t, outcome, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), task.NewTask{
		Title:       data.Title,
		Description: data.Description,
		Deadline:    deadline,
	}, uploads)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusCreated, t, outcome)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	caller := ctxUser(ctx)

	if caller.IsStudent() {
		view, err := api.svc.Detail(ctx.Request().Context(), caller, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting task detail")
		}
		return ctx.JSON(http.StatusOK, view)
	}

	t, files, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	if files == nil {
		files = []task.File{}
	}
	return ctx.JSON(http.StatusOK, taskResponse{Task: t, TaskFiles: files})
}

func (api *taskApi) update(ctx echo.Context) error {
	var data UpdateTaskRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTaskRequest")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}
	deadline, err := parseDeadline(data.Deadline)
	if err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), task.UpdateTask{
		Title:       data.Title,
		Description: data.Description,
		Deadline:    deadline,
	})
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	outcome, err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if outcome.OK() {
		return ctx.NoContent(http.StatusNoContent)
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusOK, nil, outcome)
}

func (api *taskApi) submit(ctx echo.Context) error {
	uploads, release, err := bindUploads(ctx)
	if err != nil {
		return err
	}
	defer release()

	sub, outcome, err := api.svc.Submit(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.FormValue("comments"), uploads)
	if err != nil {
		return errors.Wrap(err, "submitting task")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusCreated, sub, outcome)
}

func (api *taskApi) submissions(ctx echo.Context) error {
	view, err := api.svc.Submissions(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *taskApi) extendDueDate(ctx echo.Context) error {
	var data ExtendDueDateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExtendDueDateRequest")
	}

	a, outcome, err := api.svc.ExtendDueDate(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("assignmentId"), data.LateDueDate)
	if err != nil {
		return errors.Wrap(err, "extending due date")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusOK, a, outcome)
}

func (api *taskApi) unassign(ctx echo.Context) error {
	outcome, err := api.svc.Unassign(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("assignmentId"))
	if err != nil {
		return errors.Wrap(err, "unassigning task")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusOK, SuccessResponse{Success: "Assignment deleted successfully"}, outcome)
}

func (api *taskApi) taskFile(ctx echo.Context) error {
	f, content, err := api.svc.TaskFile(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("fileId"))
	if err != nil {
		return errors.Wrap(err, "opening task file")
	}
	return streamFile(ctx, f, content)
}

func (api *taskApi) submissionFile(ctx echo.Context) error {
	f, content, err := api.svc.SubmissionFile(
		ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("assignmentId"), ctx.Param("fileId"),
	)
	if err != nil {
		return errors.Wrap(err, "opening submitted file")
	}
	return streamFile(ctx, f, content)
}

func streamFile(ctx echo.Context, f task.File, content io.ReadCloser) error {
	defer content.Close()

	ct := f.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
	return ctx.Stream(http.StatusOK, ct, content)
}

func (api *taskApi) gradingView(ctx echo.Context) error {
	view, err := api.svc.GradingView(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "getting submission to grade")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *taskApi) grade(ctx echo.Context) error {
	var data task.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}

	a, outcome, err := api.svc.Grade(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("studentId"), data)
	if err != nil {
		return errors.Wrap(err, "grading task")
	}
	code := http.StatusOK
	if ctx.Request().Method == http.MethodPost {
		code = http.StatusCreated
	}
	return jsonWithOutcome(ctx, api.opts.Logger, code, a, outcome)
}

func (api *taskApi) grades(ctx echo.Context) error {
	grades, err := api.svc.StudentGrades(ctx.Request().Context(), ctxUser(ctx))
	if err != nil {
		return errors.Wrap(err, "getting grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}
