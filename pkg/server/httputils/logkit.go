package httputils

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"

	"github.com/san11tools/memscope/pkg/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorUtils writes API responses and the errors that end a request.
type ErrorUtils interface {
	WriteResponseJSON(r *http.Request, w http.ResponseWriter, code int, v interface{})
	WriteInvalidParameterError(r *http.Request, w http.ResponseWriter, err error)
	WriteNotFoundError(r *http.Request, w http.ResponseWriter, err error)
	WriteInternalServerError(r *http.Request, w http.ResponseWriter, err error, msg string)
	WriteError(r *http.Request, w http.ResponseWriter, code int, err error, msg string)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type logKitImpl struct {
	l log.Logger
}

func NewLogKitErrorUtils(l log.Logger) ErrorUtils {
	return &logKitImpl{l: l}
}

func (i *logKitImpl) WriteResponseJSON(r *http.Request, w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		i.WriteInternalServerError(r, w, err, "encoding response body")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func (i *logKitImpl) WriteInvalidParameterError(r *http.Request, w http.ResponseWriter, err error) {
	i.WriteError(r, w, http.StatusBadRequest, err, "invalid parameter")
}

func (i *logKitImpl) WriteNotFoundError(r *http.Request, w http.ResponseWriter, err error) {
	i.WriteError(r, w, http.StatusNotFound, err, "not found")
}

func (i *logKitImpl) WriteInternalServerError(r *http.Request, w http.ResponseWriter, err error, msg string) {
	i.WriteError(r, w, http.StatusInternalServerError, err, msg)
}

// WriteError logs client errors at debug and server errors at error level.
func (i *logKitImpl) WriteError(r *http.Request, w http.ResponseWriter, code int, err error, msg string) {
	logger := util.LoggerWithContext(r.Context(), i.l)
	if code >= http.StatusInternalServerError {
		logger = level.Error(logger)
	} else {
		logger = level.Debug(logger)
	}
	_ = logger.Log("msg", msg, "err", err, "path", r.URL.Path, "status", code)

	b, _ := json.Marshal(ErrorResponse{Error: msg + ": " + err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}
