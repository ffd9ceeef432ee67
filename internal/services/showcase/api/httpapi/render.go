package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/louisbranch/showcase/internal/platform/errors"
	"github.com/louisbranch/showcase/internal/platform/errors/i18n"
)

var errAuthNotConfigured = errors.New("bearer authentication is not configured")

type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError renders err with a message localized from Accept-Language.
// Errors without a domain code are logged and reported as UNKNOWN.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	var metadata map[string]string
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}
	if code == apperrors.CodeUnknown {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		metadata = nil
	}
	if code == apperrors.CodeUnauthenticated {
		w.Header().Set("WWW-Authenticate", "Bearer")
		// Never echo why a credential was rejected.
		metadata = nil
	}
	catalog := i18n.GetCatalog(i18n.ResolveLocale(r.Header.Get("Accept-Language")))
	writeJSON(w, code.HTTPStatus(), errorResponse{
		Code:   string(code),
		Detail: catalog.Format(string(code), metadata),
	})
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}
