package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/logger"
	"github.com/iliyamo/bus-pos/internal/service"
)

// RequestValidator adapts validator/v10 to echo.Validator.  Field names in
// errors are the JSON names clients send.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return &service.Error{Code: service.CodeValidation, Message: err.Error()}
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &service.Error{Code: service.CodeValidation, Message: strings.Join(msgs, "; ")}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// bind decodes the body into req and validates it.  A body that does not
// decode is reported as a validation error.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		msg := "invalid request body"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return &service.Error{Code: service.CodeValidation, Message: msg}
	}
	return c.Validate(req)
}

// statusFor maps service error codes to HTTP status codes.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeInsufficientPayment:
		return http.StatusUnprocessableEntity
	case service.CodeSeatUnavailable, service.CodeSessionClosed,
		service.CodeTerminalNotOpen, service.CodeOperationInvalid:
		return http.StatusConflict
	case service.CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": message, "code": code}.  Details of
// persistence failures stay in the logs.
func respondError(c echo.Context, err error) error {
	code := service.CodeOf(err)
	status := statusFor(code)
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}
