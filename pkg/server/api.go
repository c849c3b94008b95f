package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/resolver"
)

type versionResponse struct {
	Name        string    `json:"name"`
	Default     bool      `json:"default"`
	Root        string    `json:"root"`
	Base        string    `json:"base"`
	Size        uint64    `json:"size"`
	Structs     int       `json:"structs"`
	Diagnostics int       `json:"diagnostics"`
	BuiltAt     time.Time `json:"builtAt"`
}

type versionsResponse struct {
	Versions []versionResponse `json:"versions"`
}

type matchResponse struct {
	Address resolver.Address `json:"address"`
	Name    string           `json:"name"`
	Kind    string           `json:"kind"`
	Path    string           `json:"path"`
}

type searchResponse struct {
	Version string          `json:"version"`
	Name    string          `json:"name"`
	Matches []matchResponse `json:"matches"`
}

type addressResponse struct {
	Version string `json:"version"`
	resolver.RenderedPath
}

type diagnosticResponse struct {
	Struct string `json:"struct"`
	Row    int    `json:"row,omitempty"`
	Offset string `json:"offset,omitempty"`
	Kind   string `json:"kind"`
	Fatal  bool   `json:"fatal"`
	Error  string `json:"error"`
}

func (ctrl *Controller) versionsHandler(w http.ResponseWriter, r *http.Request) {
	resp := versionsResponse{Versions: []versionResponse{}}
	def := ctrl.catalog.DefaultVersion()
	for _, name := range ctrl.catalog.Versions() {
		v, err := ctrl.catalog.Version(name)
		if err != nil {
			ctrl.httpUtils.WriteInternalServerError(r, w, err, "listing versions")
			return
		}
		s := v.Schema()
		resp.Versions = append(resp.Versions, versionResponse{
			Name:        name,
			Default:     name == def,
			Root:        s.Root().TypeName,
			Base:        resolver.Address(s.Base()).String(),
			Size:        s.Root().Size,
			Structs:     len(s.Structs()),
			Diagnostics: len(v.Diagnostics),
			BuiltAt:     v.BuiltAt,
		})
	}
	ctrl.httpUtils.WriteResponseJSON(r, w, http.StatusOK, resp)
}

// addressHandler answers 404 with the partial path when the address is not
// covered by the layout.
func (ctrl *Controller) addressHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address, err := layout.ParseAddress(vars["address"])
	if err != nil {
		ctrl.httpUtils.WriteInvalidParameterError(r, w, err)
		return
	}
	version := vars["version"]
	p, found, err := ctrl.catalog.ResolveAddress(version, address)
	if err != nil {
		ctrl.writeCatalogError(w, r, err)
		return
	}
	v, err := ctrl.catalog.Version(version)
	if err != nil {
		ctrl.writeCatalogError(w, r, err)
		return
	}
	code := http.StatusOK
	if !found {
		code = http.StatusNotFound
	}
	ctrl.httpUtils.WriteResponseJSON(r, w, code, addressResponse{
		Version:      v.Name,
		RenderedPath: v.Resolver.Render(r.Context(), p),
	})
}

func (ctrl *Controller) searchHandler(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	name := r.URL.Query().Get("name")
	if name == "" {
		ctrl.httpUtils.WriteInvalidParameterError(r, w, errors.New("name is required"))
		return
	}
	matches, err := ctrl.catalog.ResolveName(version, name)
	if err != nil {
		ctrl.writeCatalogError(w, r, err)
		return
	}
	resp := searchResponse{Version: version, Name: name, Matches: make([]matchResponse, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, matchResponse{
			Address: resolver.Address(m.Address),
			Name:    m.Name,
			Kind:    m.Kind,
			Path:    m.Path,
		})
	}
	ctrl.httpUtils.WriteResponseJSON(r, w, http.StatusOK, resp)
}

func (ctrl *Controller) diagnosticsHandler(w http.ResponseWriter, r *http.Request) {
	v, err := ctrl.catalog.Version(mux.Vars(r)["version"])
	if err != nil {
		ctrl.writeCatalogError(w, r, err)
		return
	}
	resp := make([]diagnosticResponse, 0, len(v.Diagnostics))
	for _, d := range v.Diagnostics {
		resp = append(resp, diagnosticResponse{
			Struct: d.Struct,
			Row:    d.Row,
			Offset: d.Offset,
			Kind:   d.Kind(),
			Fatal:  d.Fatal,
			Error:  d.Err.Error(),
		})
	}
	ctrl.httpUtils.WriteResponseJSON(r, w, http.StatusOK, resp)
}

func (ctrl *Controller) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownVersion):
		ctrl.httpUtils.WriteNotFoundError(r, w, err)
	case errors.Is(err, catalog.ErrNotLoaded):
		ctrl.httpUtils.WriteError(r, w, http.StatusServiceUnavailable, err, "catalog unavailable")
	default:
		ctrl.httpUtils.WriteInternalServerError(r, w, err, fmt.Sprintf("querying %s", r.URL.Path))
	}
}
