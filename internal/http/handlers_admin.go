package httpx

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ofirc298/GUIDESSITE2025/internal/authz"
)

// AdminHandlers serves the admin access probe and the admin page shell.
type AdminHandlers struct {
	Logger *slog.Logger
}

// Access handles GET /api/admin/access. RequireRoles has already admitted the caller.
func (h *AdminHandlers) Access(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	WriteJSON(w, http.StatusOK, authz.AccessFor(GetSessionFromContext(r.Context())))
}

var adminShell = template.Must(template.New("admin").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Admin</title></head>
<body>
<main data-role="{{.Access.Role}}" data-can-manage="{{.Access.CanManage}}" data-can-delete="{{.Access.CanDelete}}">
<h1>Admin</h1>
<p>Signed in as {{.Email}}</p>
</main>
</body>
</html>
`))

// Page handles GET /admin/. The admin UI itself is served elsewhere; this shell
// only confirms the guard admitted the caller.
func (h *AdminHandlers) Page(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	data := struct {
		Email  string
		Access authz.Access
	}{Access: authz.AccessFor(sess)}
	if sess != nil {
		data.Email = sess.User.Email
	}

	noStore(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminShell.Execute(w, data); err != nil && h.Logger != nil {
		h.Logger.ErrorContext(r.Context(), "render admin shell", "error", err)
	}
}
