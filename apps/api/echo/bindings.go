package echoapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

const (
	orderingParam = "ordering"
	filesField    = "files"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindUploads opens the files of a multipart request; release must be called once they are consumed.
func bindUploads(ctx echo.Context) (uploads []core.Upload, release func(), err error) {
	release = func() {}

	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Cause(err) == http.ErrNotMultipart {
			return nil, release, nil
		}
		return nil, release, core.NewValidationError(errors.New("invalid multipart form"))
	}

	files := make([]multipart.File, 0)
	release = func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range form.File[filesField] {
		f, err := fh.Open()
		if err != nil {
			release()
			return nil, func() {}, errors.Wrapf(err, "opening upload %s", fh.Filename)
		}
		files = append(files, f)
		uploads = append(uploads, core.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Content:     f,
		})
	}
	return uploads, release, nil
}

// jsonWithOutcome sends data along with a "warning" when a side effect of the change failed.
func jsonWithOutcome(ctx echo.Context, logger core.Logger, code int, data interface{}, outcome core.Outcome) error {
	warning := outcome.Warning()
	if warning == "" {
		return ctx.JSON(code, data)
	}
	logger.Warn(warning, map[string]interface{}{
		"notify_error":  errString(outcome.NotifyErr),
		"publish_error": errString(outcome.PublishErr),
		"cleanup_error": errString(outcome.CleanupErr),
	}, contextLogUser(ctx))

	body := map[string]interface{}{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "marshalling response")
		}
		if err = json.Unmarshal(raw, &body); err != nil {
			body = map[string]interface{}{"data": json.RawMessage(raw)}
		}
	}
	body["warning"] = warning
	return ctx.JSON(code, body)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
