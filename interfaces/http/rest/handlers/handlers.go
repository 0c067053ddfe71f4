package handlers

import (
	"errors"
	"io"
	"net/http"

	"canvashistory/pkg/auth"
	"canvashistory/pkg/common"
	pkgerrors "canvashistory/pkg/errors"

	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 4 << 20

// currentUser returns the authenticated caller or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, r, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "User not authenticated")
		return nil, false
	}
	return user, true
}

// respondError writes err and logs it when it is a server fault
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, msg string, err error) {
	if status := pkgerrors.HTTPStatus(err); status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("path", r.URL.Path))
	} else {
		logger.Debug(msg, zap.Error(err), zap.String("path", r.URL.Path))
	}
	common.RespondAppError(w, r, err)
}

// parseOptionalBody decodes a JSON body when one was sent
func parseOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := common.ParseJSONBody(w, r, v, maxBytes)
	if err != nil && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
