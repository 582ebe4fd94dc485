package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// StrictJSONSerializer is echo's JSON codec with unknown request fields rejected.
type StrictJSONSerializer struct{}

func (StrictJSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (StrictJSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(i)
	if err == nil {
		if dec.More() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload: trailing data")
		}
		return nil
	}

	var (
		ute *json.UnmarshalTypeError
		se  *json.SyntaxError
	)
	switch {
	case errors.As(err, &ute):
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid payload: %s must be %s", ute.Field, ute.Type)).SetInternal(err)
	case errors.As(err, &se), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload: malformed JSON").SetInternal(err)
	default:
		// DisallowUnknownFields reports `json: unknown field "x"`.
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload: "+err.Error()).SetInternal(err)
	}
}
