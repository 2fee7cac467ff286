package api

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEMsgpack is the content type of msgpack responses.
const MIMEMsgpack = "application/msgpack"

// wantsMsgpack reports whether the client asked for msgpack.
func wantsMsgpack(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, MIMEMsgpack) || strings.Contains(accept, "application/x-msgpack")
}

// respond writes v as msgpack when negotiated, JSON otherwise.
func respond(c echo.Context, status int, v any) error {
	if !wantsMsgpack(c) {
		return c.JSON(status, v)
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode msgpack: %w", err)
	}
	return c.Blob(status, MIMEMsgpack, data)
}
