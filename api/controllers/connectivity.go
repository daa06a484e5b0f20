package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-pos/api/responses"
	"github.com/angelmondragon/packfinderz-pos/api/validators"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

type OnlineReporter interface {
	Online() bool
}

// OnlineSetter is only wired when the terminal reports reachability by hand.
type OnlineSetter interface {
	SetOnline(online bool)
}

type connectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type connectivityResponse struct {
	Online bool `json:"online"`
	Manual bool `json:"manual"`
}

func GetConnectivity(state OnlineReporter, setter OnlineSetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connectivity monitor unavailable"))
			return
		}
		responses.WriteSuccess(w, connectivityResponse{Online: state.Online(), Manual: setter != nil})
	}
}

func SetConnectivity(setter OnlineSetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if setter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "connectivity is probed automatically"))
			return
		}
		var req connectivityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setter.SetOnline(*req.Online)
		responses.WriteSuccess(w, connectivityResponse{Online: *req.Online, Manual: true})
	}
}
