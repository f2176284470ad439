package httpx

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Status string `json:"status"`
	Count  *int   `json:"count,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

// List writes a success envelope carrying the item count.
func List[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	WriteJSON(w, http.StatusOK, envelope{Status: "success", Count: &n, Data: items})
}

func Created(w http.ResponseWriter, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	WriteJSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

func OKNoData(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, envelope{Status: "success"})
}

// Decode reads a JSON or form-urlencoded body into dst. Form bodies are
// re-encoded as JSON so both share dst's json tags; keys repeated in the
// form (genre=a&genre=b) and keys listed in lists become arrays. Read
// errors such as *http.MaxBytesError are returned unwrapped.
func Decode(r *http.Request, dst any, lists ...string) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		raw, err := json.Marshal(formMap(r.PostForm, lists))
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dst)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func formMap(form url.Values, lists []string) map[string]any {
	out := make(map[string]any, len(form))
	for k, vs := range form {
		isList := len(vs) > 1
		for _, l := range lists {
			if l == k {
				isList = true
			}
		}
		if isList {
			out[k] = vs
			continue
		}
		out[k] = vs[0]
	}
	return out
}
