package utils

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

type Map map[string]string

var strictAPI = sonic.Config{
	DisallowUnknownFields: true,
}.Froze()

// StrictBodyParser parses the request body strictly and returns an error if the body contains unknown fields.
func StrictBodyParser(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return NewError(ErrBadRequest.Code, "Request body is required")
	}
	if err := strictAPI.Unmarshal(c.Body(), out); err != nil {
		return WrapError(err, ErrBadRequest.Code, "Invalid request format")
	}
	return nil
}

// Contains checks if a string exists in a slice of strings.
func Contains(arr []string, str string) bool {
	for _, a := range arr {
		if a == str {
			return true
		}
	}
	return false
}

// Pagination reads limit/offset query params, clamping limit to [1, max].
func Pagination(c *fiber.Ctx, def, max int) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
