package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/HenryGill4/OpCentrix-sub006/pkg/errors"
)

// CustomValidation is a service-specific validator tag.
type CustomValidation struct {
	Tag     string
	Fn      validator.Func
	Message string
}

var (
	validateOnce sync.Once
	messagesMu   sync.RWMutex
	tagMessages  = map[string]string{
		"required":      "is required",
		"operator_name": "must be 1-64 letters, digits, spaces, dots or dashes",
	}
)

var operatorNameRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} .'\-]{0,63}$`)

func validateOperatorName(fl validator.FieldLevel) bool {
	return operatorNameRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// InitValidator registers the built-in and service-specific tags on gin's
// validator engine. Only the first call has any effect.
func InitValidator(custom ...CustomValidation) {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("operator_name", validateOperatorName)

		messagesMu.Lock()
		defer messagesMu.Unlock()
		for _, cv := range custom {
			_ = v.RegisterValidation(cv.Tag, cv.Fn)
			if cv.Message != "" {
				tagMessages[cv.Tag] = cv.Message
			}
		}
	})
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	messagesMu.RLock()
	msg, ok := tagMessages[e.Tag()]
	messagesMu.RUnlock()
	if ok {
		return msg
	}

	switch e.Tag() {
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gtfield":
		return "must be after " + e.Param()
	default:
		return "is invalid"
	}
}

func bindError(err error) *errors.AppError {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
	}
	return errors.ErrBadRequest("invalid request: " + err.Error())
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err)
	}
	return nil
}

// BindQuery binds and validates query string parameters
func BindQuery(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError(err)
	}
	return nil
}

// ContentType rejects POST/PUT bodies that are not JSON
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, &errors.AppError{
					Code:       "INVALID_CONTENT_TYPE",
					Message:    "Content-Type must be application/json",
					HTTPStatus: http.StatusUnsupportedMediaType,
				})
				return
			}
		}
		c.Next()
	}
}
