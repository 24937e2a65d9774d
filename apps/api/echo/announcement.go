package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core/announcement"
)

type announcementApi struct {
	opts *Options
	svc  *announcement.Service
}

func registerAnnouncementAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts *Options) {
	api := announcementApi{opts: opts, svc: opts.AnnouncementSvc}

	cg := g.Group("/courses", authed...)
	cg.GET("/:id/announcements", api.queryForCourse)
	cg.POST("/:id/announcements", api.create)

	ag := g.Group("/announcements", authed...)
	ag.GET("/:id/comments", api.comments)
	ag.POST("/:id/comments", api.addComment)
	ag.GET("/:id/reactions", api.reactions)
	ag.POST("/:id/reactions", api.react)
}

// Handlers

func (api *announcementApi) queryForCourse(ctx echo.Context) error {
	feed, err := api.svc.ListForCourse(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	return ctx.JSON(http.StatusOK, feed)
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}

	ann, outcome, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return jsonWithOutcome(ctx, api.opts.Logger, http.StatusCreated, ann, outcome)
}

func (api *announcementApi) comments(ctx echo.Context) error {
	comments, err := api.svc.Comments(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *announcementApi) addComment(ctx echo.Context) error {
	var data announcement.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *announcementApi) reactions(ctx echo.Context) error {
	reactions, err := api.svc.Reactions(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing reactions")
	}
	return ctx.JSON(http.StatusOK, reactions)
}

func (api *announcementApi) react(ctx echo.Context) error {
	var data announcement.NewReaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReaction")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	r, created, err := api.svc.React(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reacting to announcement")
	}
	if created {
		return ctx.JSON(http.StatusCreated, r)
	}
	return ctx.JSON(http.StatusOK, r)
}
