package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/render"
)

type indexPage struct {
	Versions []string
	Version  string
	Address  string
	Searched bool
	Found    bool
	Result   string
	Error    string
}

// indexHandler serves the lookup form and, when an address is given, the
// console rendering of its path.
func (ctrl *Controller) indexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := indexPage{
		Versions: ctrl.catalog.Versions(),
		Version:  q.Get("version"),
		Address:  q.Get("address"),
	}
	if page.Version == "" {
		page.Version = ctrl.catalog.DefaultVersion()
	}
	code := http.StatusOK
	if page.Address != "" {
		page.Searched = true
		code = ctrl.lookup(r, &page)
	}

	var buf bytes.Buffer
	if err := ctrl.index.Execute(&buf, page); err != nil {
		ctrl.httpUtils.WriteInternalServerError(r, w, err, "rendering index page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func (ctrl *Controller) lookup(r *http.Request, page *indexPage) int {
	address, err := layout.ParseAddress(page.Address)
	if err != nil {
		page.Error = err.Error()
		return http.StatusBadRequest
	}
	p, found, err := ctrl.catalog.ResolveAddress(page.Version, address)
	if err != nil {
		page.Error = err.Error()
		if errors.Is(err, catalog.ErrUnknownVersion) {
			return http.StatusNotFound
		}
		return http.StatusServiceUnavailable
	}
	page.Found = found
	if !found {
		return http.StatusOK
	}
	v, err := ctrl.catalog.Version(page.Version)
	if err != nil {
		page.Error = err.Error()
		return http.StatusServiceUnavailable
	}
	var buf bytes.Buffer
	if err := render.Text(&buf, v.Resolver.Render(r.Context(), p), render.Options{}); err != nil {
		page.Error = err.Error()
		return http.StatusInternalServerError
	}
	page.Result = buf.String()
	return http.StatusOK
}
