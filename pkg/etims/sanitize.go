package etims

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// requestStage transforms an outbound request before it leaves the dispatcher
type requestStage func(*Request) error

// defaultStages is the outbound pipeline every request passes through
var defaultStages = []requestStage{
	sanitizeRequest,
	expandPath,
}

// runStages applies stages in order on a copy of req
func runStages(req Request, stages []requestStage) (Request, error) {
	out := req.clone()
	for _, stage := range stages {
		if err := stage(&out); err != nil {
			return Request{}, err
		}
	}
	return out, nil
}

// sanitizeRequest trims whitespace from every string the request carries into
// the URL or headers. The authority gateway treats stray whitespace as a
// signature mismatch. Header names and values net/http would refuse are
// rejected here, before anything is sent.
func sanitizeRequest(r *Request) error {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	r.Path = strings.TrimSpace(r.Path)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	for name, value := range r.PathParams {
		r.PathParams[name] = strings.TrimSpace(value)
	}
	if r.Header == nil {
		return nil
	}
	clean := make(http.Header, len(r.Header))
	for name, values := range r.Header {
		key := http.CanonicalHeaderKey(strings.TrimSpace(name))
		if !httpguts.ValidHeaderFieldName(key) {
			return newValidationError("header "+strconv.Quote(name), errInvalidHeaderName)
		}
		for _, v := range values {
			v = strings.TrimSpace(v)
			if !httpguts.ValidHeaderFieldValue(v) {
				return newValidationError("header "+key, errInvalidHeaderValue)
			}
			clean[key] = append(clean[key], v)
		}
	}
	r.Header = clean
	return nil
}

// expandPath substitutes {name} placeholders with escaped path parameters
func expandPath(r *Request) error {
	if r.template == "" {
		r.template = r.Path
	}
	for name, value := range r.PathParams {
		if value == "" {
			return newValidationError("path parameter "+name, errEmptyParam)
		}
		placeholder := "{" + name + "}"
		if !strings.Contains(r.Path, placeholder) {
			return newValidationError("path parameter "+name, errUnusedParam)
		}
		r.Path = strings.ReplaceAll(r.Path, placeholder, url.PathEscape(value))
	}
	if strings.ContainsAny(r.Path, "{}") {
		return newValidationError("path "+r.template, errUnboundParam)
	}
	if !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + r.Path
	}
	return nil
}
