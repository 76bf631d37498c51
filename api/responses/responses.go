package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Flash categories understood by the page templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Flasher queues one-shot messages for the next page a form client lands on.
type Flasher interface {
	AddFlash(w http.ResponseWriter, r *http.Request, category, message string)
}

// Renderer renders a named page. ok is false when no template is installed for name.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, name string, data any) (ok bool, err error)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: pkgerrors.PublicMessage(typed),
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
		if lines, ok := detailLines(typed); ok {
			payload.Error.Messages = lines
		}
	}

	logRequestError(ctx, logg, typed, err)
	writeJSON(w, meta.HTTPStatus, payload)
}

func detailLines(typed *pkgerrors.Error) ([]string, bool) {
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return nil, false
	}
	lines, ok := details[pkgerrors.LinesDetail].([]string)
	return lines, ok && len(lines) > 0
}

// WantsJSON reports whether the client expects a JSON response instead of a page or redirect.
func WantsJSON(r *http.Request) bool {
	if r == nil {
		return false
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization"))), "bearer ") {
		return true
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

// Done answers a successful mutation: JSON clients get data, form clients are redirected
// to the given location with message flashed.
func Done(w http.ResponseWriter, r *http.Request, flasher Flasher, redirectTo string, data any, message string) {
	if WantsJSON(r) {
		writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: data, Message: message})
		return
	}
	if message != "" && flasher != nil {
		flasher.AddFlash(w, r, FlashSuccess, message)
	}
	Redirect(w, r, redirectTo)
}

// Fail answers a failed request. Form clients get one error flash per user-facing message
// and are sent back to redirectTo; internal failures are logged either way.
func Fail(w http.ResponseWriter, r *http.Request, logg *logger.Logger, flasher Flasher, redirectTo string, err error) {
	if WantsJSON(r) {
		WriteError(r.Context(), logg, w, err)
		return
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	logRequestError(r.Context(), logg, typed, err)

	if typed.Code() == pkgerrors.CodeUnauthorized && redirectTo != "/login" {
		redirectTo = "/login"
	}
	if flasher != nil {
		for _, msg := range pkgerrors.UserMessages(typed) {
			flasher.AddFlash(w, r, FlashError, msg)
		}
	}
	Redirect(w, r, redirectTo)
}

// Page renders a read-only page: JSON clients and installs without a template for name get
// the JSON envelope, everyone else gets the rendered template.
func Page(w http.ResponseWriter, r *http.Request, logg *logger.Logger, renderer Renderer, name string, data any) {
	if WantsJSON(r) || renderer == nil {
		WriteSuccess(w, data)
		return
	}
	ok, err := renderer.Render(w, r, name, data)
	if err != nil {
		WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render page"))
		return
	}
	if !ok {
		WriteSuccess(w, data)
	}
}

// Redirect issues a 303 so browsers follow POSTs with a GET.
func Redirect(w http.ResponseWriter, r *http.Request, to string) {
	if to == "" {
		to = "/"
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// Back is the Referer when it points at this site, otherwise fallback.
func Back(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return ref
	}
	host := r.Host
	for _, scheme := range []string{"http://", "https://"} {
		prefix := scheme + host
		if strings.HasPrefix(ref, prefix+"/") || ref == prefix {
			if path := strings.TrimPrefix(ref, prefix); path != "" {
				return path
			}
			return "/"
		}
	}
	return fallback
}

func logRequestError(ctx context.Context, logg *logger.Logger, typed *pkgerrors.Error, err error) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()

	if d := typed.Details(); d != nil {
		if dm, ok := d.(map[string]any); ok {
			if step, ok := dm["step"]; ok {
				fields["step"] = step
			}
		}
	}

	ctx = logg.WithFields(ctx, fields)
	switch pkgerrors.StatusCode(typed) / 100 {
	case 5:
		logg.Error(ctx, "request.error", err)
	default:
		logg.Warn(ctx, "request.rejected")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
