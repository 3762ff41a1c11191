package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

const (
	searchParam      = "search"
	enabledParam     = "enabled"
	statusParam      = "status"
	studentParam     = "student_id"
	offerParam       = "offer_id"
	evaluatorParam   = "evaluator_id"
	invalidParamText = "invalid value"
)

// pathID reads the `:id` path param; a malformed ID cannot match any record.
func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func queryInt64(ctx echo.Context, name string) (int64, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id < 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: invalidParamText})
	}
	return id, nil
}

// bindStudentFilter reads `?search=&enabled=true|false`.
func bindStudentFilter(ctx echo.Context) (user.QueryFilter, error) {
	filter := user.QueryFilter{Search: ctx.QueryParam(searchParam)}
	if val := strings.TrimSpace(ctx.QueryParam(enabledParam)); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: enabledParam, Error: invalidParamText})
		}
		filter.Enabled = &enabled
	}
	filter.Clean()
	return filter, nil
}

// bindApplicationFilter reads `?status=&student_id=&offer_id=`.
func bindApplicationFilter(ctx echo.Context) (application.QueryFilter, error) {
	var (
		filter application.QueryFilter
		err    error
	)
	if val := strings.ToUpper(strings.TrimSpace(ctx.QueryParam(statusParam))); val != "" {
		filter.Status = application.Status(val)
		if !filter.Status.Valid() {
			return filter, core.NewValidationError(nil, core.FieldError{Field: statusParam, Error: invalidParamText})
		}
	}
	if filter.StudentID, err = queryInt64(ctx, studentParam); err != nil {
		return filter, err
	}
	if filter.OfferID, err = queryInt64(ctx, offerParam); err != nil {
		return filter, err
	}
	return filter, nil
}

// bindPracticeFilter reads `?status=&student_id=&evaluator_id=`.
func bindPracticeFilter(ctx echo.Context) (practice.QueryFilter, error) {
	var (
		filter practice.QueryFilter
		err    error
	)
	switch status := practice.Status(strings.ToUpper(strings.TrimSpace(ctx.QueryParam(statusParam)))); status {
	case "":
	case practice.StatusOpen, practice.StatusClosed:
		filter.Status = status
	default:
		return filter, core.NewValidationError(nil, core.FieldError{Field: statusParam, Error: invalidParamText})
	}
	if filter.StudentID, err = queryInt64(ctx, studentParam); err != nil {
		return filter, err
	}
	if filter.EvaluatorID, err = queryInt64(ctx, evaluatorParam); err != nil {
		return filter, err
	}
	return filter, nil
}
