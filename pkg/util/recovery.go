package util

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const maxStacksize = 8 * 1024

var panicTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "memscope",
	Name:      "panic_total",
	Help:      "The total number of recovered panics.",
})

// PanicCollector exposes the recovered panic count on another registry.
func PanicCollector() prometheus.Collector { return panicTotal }

func panicError(p interface{}) error {
	stack := make([]byte, maxStacksize)
	stack = stack[:runtime.Stack(stack, false)]
	_ = level.Error(Logger).Log("msg", "recovered from panic", "panic", p, "stack", string(stack))
	panicTotal.Inc()
	return fmt.Errorf("panic: %v", p)
}

// RecoverPanic turns a panic in f into an error.
func RecoverPanic(f func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = panicError(p)
			}
		}()
		return f()
	}
}

// RecoveryHTTPMiddleware answers 500 when the next handler panics.
func RecoveryHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				err := panicError(p)
				http.Error(w, "error while processing request: "+err.Error(), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
