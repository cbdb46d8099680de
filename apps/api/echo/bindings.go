package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

var orderingParam = "ordering"

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

// payload is an input cleaned before validation.
type payload interface {
	Clean()
}

// bindPayload binds the request body into data, cleans & validates it.
func (s *Server) bindPayload(ctx echo.Context, data payload) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding payload")
	}
	data.Clean()
	return s.deps.Validate.Struct(data)
}

// idParam reads a positive record id from the path. Anything else is not found.
func idParam(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
