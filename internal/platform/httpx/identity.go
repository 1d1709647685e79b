package httpx

import (
	"net/http"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// Identity extracts the caller identity or writes a 404. Requests without an
// organization scope are indistinguishable from requests for another org's
// data, so the denial matches the not-found contract.
func Identity(w http.ResponseWriter, r *http.Request) (shared.Identity, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		Error(w, http.StatusNotFound, "not found", "")
	}
	return id, ok
}
