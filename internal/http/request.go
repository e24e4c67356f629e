package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"parceiros/internal/core"
	"parceiros/internal/store"
)

const (
	maxJSONBody = 1 << 20
	maxCSVBody  = 10 << 20
)

var (
	errBadRequest = errors.New("bad request")
	errValidation = errors.New("validation failed")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// decodeJSON reads one JSON value from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty request body")
		}
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}

// csvBody returns the uploaded CSV. A multipart form must carry it in the
// "file" field; any other content type is read as the raw CSV.
func csvBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	if err := r.ParseMultipartForm(maxCSVBody); err != nil {
		return nil, nil, badRequest("invalid multipart form: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, badRequest("missing file field")
	}
	return f, func() { f.Close() }, nil
}

// parseType accepts an empty value as "any type".
func parseType(s string) (core.TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "incoming", "entrada":
		return core.Incoming, nil
	case "outgoing", "saida", "saída":
		return core.Outgoing, nil
	}
	return "", badRequest("invalid type %q", s)
}

// parseWindowFlag reads an optional boolean query flag.
func parseWindowFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, badRequest("invalid window flag %q", s)
}

func parseReportFilter(q url.Values) (store.ReportFilter, error) {
	f := store.ReportFilter{
		Search:    sanitizeInput(q.Get("search")),
		PartnerID: strings.TrimSpace(q.Get("partner")),
	}
	var err error
	if f.Type, err = parseType(q.Get("type")); err != nil {
		return f, err
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			return f, badRequest("invalid from date %q", v)
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			return f, badRequest("invalid to date %q", v)
		}
	}
	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
