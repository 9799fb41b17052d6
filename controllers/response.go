package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Bazaar/middleware"
	"Bazaar/pkg/apperror"
)

// respondSuccess writes {"status":"success", ...body}.
func respondSuccess(c *gin.Context, code int, body gin.H) {
	out := gin.H{"status": "success"}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(code, out)
}

// respondError maps err to its HTTP status. Only the safe message of an
// *apperror.Error reaches the client; causes are logged.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	code := apperror.HTTPStatus(kind)

	message := "something went wrong"
	var appErr *apperror.Error
	if errors.As(err, &appErr) && kind != apperror.KindInternal {
		message = appErr.Message
	}

	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
		middleware.LoggerFrom(c).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, gin.H{"status": status, "message": message})
}

func fail(c *gin.Context, kind apperror.Kind, message string) {
	respondError(c, apperror.New(kind, message))
}
