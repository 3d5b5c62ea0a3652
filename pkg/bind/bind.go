// Package bind decodes a JSON request body and validates it.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/validate"
)

// ErrEmptyBody is returned for a request without a body.
var ErrEmptyBody = errors.New("Request body is required")

func limit() int64 {
	if n := config.Int("MAX_BODY_BYTES", 1<<20); n > 0 {
		return int64(n)
	}
	return 1 << 20
}

// JSON decodes one JSON value from r.Body into dest, then validates dest.
// A decode failure is returned as err; field failures come back as errs.
func JSON(r *http.Request, dest any) (errs map[string]string, err error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, ErrEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit()))
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrEmptyBody
		case errors.As(err, &tooLarge):
			return nil, fmt.Errorf("Request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("Malformed JSON body")
		case errors.As(err, &syntax):
			return nil, fmt.Errorf("Malformed JSON at offset %d", syntax.Offset)
		case errors.As(err, &typ):
			return nil, fmt.Errorf("Field %q must be %s", typ.Field, typ.Type)
		default:
			return nil, fmt.Errorf("Invalid JSON body")
		}
	}
	if dec.More() {
		return nil, fmt.Errorf("Request body must hold a single JSON value")
	}

	if errs = validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
