package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/geocoder89/vaulthub/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError = validation.FieldError

func init() {
	// binding errors report JSON names, same as the flow services
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(validation.JSONFieldName)
	}
}

// BindJSON decodes the body into out. On failure it writes the 4xx response
// and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	if errors.Is(err, io.EOF) {
		RespondBadRequest(ctx, "Request body is required", nil)
		return false
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large", nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err))

	return false
}

func bindErrorDetails(err error) interface{} {
	// validator errors (struct binding tags)
	if _, fields, ok := validation.Describe(err); ok {
		return gin.H{"fields": fields}
	}

	// in the event of bad json
	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	// in the event of a type mismatch; Field is already the JSON path
	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		return gin.H{
			"json":  "invalid_json_type",
			"field": typeError.Field,
			"fields": []FieldError{
				{
					Field:   typeError.Field,
					Rule:    "type",
					Message: "must be of type " + typeError.Type.String(),
				},
			},
		}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": err.Error()}
}
