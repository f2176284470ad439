package middlewares

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// HPPOptions guards against HTTP parameter pollution: a repeated parameter is
// collapsed to its first value unless it is listed in Multi.
type HPPOptions struct {
	CheckQuery                  bool
	CheckBody                   bool
	CheckBodyOnlyForContentType string
	Multi                       []string
}

func HPP(opts HPPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.CheckBody && r.Method != http.MethodGet && isCorrectContentType(r, opts.CheckBodyOnlyForContentType) {
				if err := r.ParseForm(); err == nil {
					collapse(r.PostForm, opts.Multi)
					collapse(r.Form, opts.Multi)
				}
			}
			if opts.CheckQuery && r.URL.RawQuery != "" {
				q := r.URL.Query()
				collapse(q, opts.Multi)
				r.URL.RawQuery = q.Encode()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isCorrectContentType(r *http.Request, contentType string) bool {
	return strings.Contains(r.Header.Get("Content-Type"), contentType)
}

func collapse(v url.Values, multi []string) {
	for k, vs := range v {
		if len(vs) > 1 && !slices.Contains(multi, k) {
			v[k] = vs[:1]
		}
	}
}

// DefaultHPPOptions lets book genres repeat (genre=a&genre=b) and nothing else.
func DefaultHPPOptions() HPPOptions {
	return HPPOptions{
		CheckQuery:                  true,
		CheckBody:                   true,
		CheckBodyOnlyForContentType: "application/x-www-form-urlencoded",
		Multi:                       []string{"genre"},
	}
}
