package server

import (
	"net/http"

	"github.com/google/uuid"

	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware reuses the caller's request ID or assigns a new one,
// echoes it in the response and attaches it to the request context.
func (ctrl *Controller) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := memcontext.WithLogger(r.Context(), ctrl.logger)
		next.ServeHTTP(w, r.WithContext(memcontext.WithRequestID(ctx, id)))
	}
}
