package httpmw

import (
	"context"
	"net/http"
	"strings"
)

const HeaderPartial = "HX-Request"

const ctxKeyPartial ctxKey = "partial"

// Partial отмечает запросы фрагмента страницы (HX-Request: true).
// Ответ зависит от заголовка, поэтому выставляем Vary.
func Partial(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", HeaderPartial)
		if strings.EqualFold(r.Header.Get(HeaderPartial), "true") {
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyPartial, true))
		}
		next.ServeHTTP(w, r)
	})
}

func IsPartial(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyPartial).(bool)
	return v
}
