package server

import (
	"errors"
	"net/http"
)

type configResponse struct {
	Yaml string `json:"yaml"`
}

func (ctrl *Controller) configHandler(w http.ResponseWriter, r *http.Request) {
	if ctrl.configYAML == nil {
		ctrl.httpUtils.WriteNotFoundError(r, w, errors.New("config is not exposed"))
		return
	}
	configBytes, err := ctrl.configYAML()
	if err != nil {
		ctrl.httpUtils.WriteInternalServerError(r, w, err, "encoding config")
		return
	}
	ctrl.httpUtils.WriteResponseJSON(r, w, http.StatusOK, configResponse{Yaml: string(configBytes)})
}
