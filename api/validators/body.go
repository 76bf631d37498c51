package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// product forms carry an image
	maxMultipartMemory = 32 << 20
	maxJSONBody        = 1 << 20

	invalidInputMessage = "Please check the highlighted fields."
)

var validate = newValidator()

// newValidator reports fields under their json names so messages match the form inputs.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

func IsJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// DecodeJSONBody decodes exactly one JSON object into dest and validates it. Unknown
// fields, trailing data and bodies over 1 MiB are rejected.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBody)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return jsonError(err)
	}
	if decoder.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Request body must hold a single JSON object.")
	}
	return check(dest)
}

func jsonError(err error) *pkgerrors.Error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	var msg string
	switch {
	case errors.Is(err, io.EOF):
		msg = "Request body is empty."
	case errors.As(err, &sizeErr):
		msg = "Request body is too large."
	case errors.As(err, &syntaxErr):
		msg = fmt.Sprintf("Malformed JSON at offset %d.", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		msg = fmt.Sprintf("Field %q has the wrong type.", typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		msg = "Unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ") + "."
	default:
		msg = "Request body could not be read."
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
}

// DecodeRequest fills dest from a JSON body, or lets fill copy form values into it for
// form posts. Struct validation runs either way.
func DecodeRequest(r *http.Request, dest any, fill func(url.Values)) error {
	if IsJSON(r) {
		return DecodeJSONBody(r, dest)
	}
	form, err := ParseForm(r)
	if err != nil {
		return err
	}
	fill(form)
	return check(dest)
}

// ParseForm handles urlencoded and multipart bodies and returns the merged values.
func ParseForm(r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	parse := r.ParseForm
	if mediaType == "multipart/form-data" {
		parse = func() error { return r.ParseMultipartForm(maxMultipartMemory) }
	}
	if err := parse(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "We could not read the submitted form.")
	}
	return r.Form, nil
}

func check(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, invalidInputMessage)
	}

	details := make(map[string]any, len(fieldErrs)+1)
	lines := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := describe(fe)
		details[fe.Field()] = msg
		lines = append(lines, fieldLabel(fe.Field())+" "+msg+".")
	}
	slices.Sort(lines)
	details[pkgerrors.LinesDetail] = lines
	return pkgerrors.New(pkgerrors.CodeValidation, invalidInputMessage).WithDetails(details)
}

// fieldLabel turns "buyer_email" into "Buyer email".
func fieldLabel(field string) string {
	label := strings.ReplaceAll(field, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}
