package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
)

// writeError maps service errors to HTTP responses. Anything untyped is a
// plain 500 without internals leaking into the body.
func writeError(c echo.Context, err error) error {
	var notFound *apperrors.NotFoundError
	if errors.As(err, &notFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": notFound.Error(),
		})
	}

	var validation *apperrors.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":             "validation failed",
			"artifact_key":      validation.ArtifactKey,
			"validation_errors": validation.Errors,
		})
	}

	var noPoint *apperrors.NoSafeInsertionPointError
	if errors.As(err, &noPoint) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": noPoint.Error(),
		})
	}

	var conflict *apperrors.VersionConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":        conflict.Error(),
			"base_version": conflict.BaseVersion,
			"head_version": conflict.HeadVersion,
		})
	}

	var patchState *apperrors.PatchStateError
	if errors.As(err, &patchState) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": patchState.Error(),
		})
	}

	var readErr *apperrors.ArtifactReadError
	if errors.As(err, &readErr) {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error": readErr.Error(),
		})
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal server error",
	})
}
