package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alnah/go-clipscribe/internal/clip"
)

type handler struct {
	svc       pipeline
	rateLimit float64
}

// healthBody adds the HTTP layer's own settings to the service report.
type healthBody struct {
	clip.Health
	RateLimit float64 `json:"rate_limit_rps" msgpack:"rate_limit_rps"`
}

func (h *handler) health(c echo.Context) error {
	return respond(c, http.StatusOK, healthBody{Health: h.svc.Health(), RateLimit: h.rateLimit})
}

// search accepts ?query=&limit= on GET and a JSON body on POST.
func (h *handler) search(c echo.Context) error {
	var req clip.SearchRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest("malformed search request", err)
	}
	res, err := h.svc.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res)
}

func (h *handler) download(c echo.Context) error {
	var req clip.DownloadRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest("malformed download request", err)
	}
	res, err := h.svc.Download(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res)
}

func (h *handler) formats(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{"formats": clip.Formats()})
}

func (h *handler) cut(c echo.Context) error {
	var req clip.CutRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest("malformed cut request", err)
	}
	res, err := h.svc.Cut(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res)
}

func (h *handler) metadata(c echo.Context) error {
	info, err := h.svc.Metadata(c.Request().Context(), c.QueryParam("filepath"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"metadata": info})
}

func (h *handler) transcribe(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return invalidRequest("multipart field \"file\" is required", err)
	}
	src, err := fh.Open()
	if err != nil {
		return invalidRequest("could not read upload", err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return invalidRequest("could not read upload", err)
	}

	tr, err := h.svc.Transcribe(c.Request().Context(), clip.TranscribeRequest{
		Data:              data,
		Filename:          fh.Filename,
		Engine:            c.QueryParam("engine"),
		TargetLang:        c.QueryParam("target_lang"),
		TranslationEngine: c.QueryParam("translation_engine"),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, tr)
}

func (h *handler) engines(c echo.Context) error {
	return respond(c, http.StatusOK, h.svc.Engines())
}

func (h *handler) languages(c echo.Context) error {
	caps, err := h.svc.Languages(c.QueryParam("engine"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, caps)
}

func (h *handler) serveFile(c echo.Context) error {
	f, err := h.svc.Open(c.QueryParam("filepath"))
	if err != nil {
		return err
	}
	return c.Attachment(f.Path, f.Name())
}

func (h *handler) deleteFile(c echo.Context) error {
	ref := c.QueryParam("filepath")
	if err := h.svc.Delete(ref); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{
		"deleted": true,
		"message": fmt.Sprintf("%s removed", ref),
	})
}
