package httpapi

import (
	"bytes"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

var formTmpl = template.Must(template.New("otp-form").Parse(`<!DOCTYPE html>
<html><body>
  <h3>Secure Download</h3>
  <p>Please enter the passcode provided by the client.</p>
  {{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
  <form method="POST" action="/secure-download">
    <input type="hidden" name="token" value="{{.Token}}">
    <label>Passcode: <input type="password" name="otp" autocomplete="off"></label>
    <button type="submit">Download</button>
  </form>
  <p style="font-size:12px;color:#666">This link does not expire, but the number of downloads is limited.</p>
</body></html>
`))

type formData struct {
	Token string
	Error string
}

// renderForm writes the passcode form carrying the signed token forward.
func (h *Handler) renderForm(w http.ResponseWriter, signed, errMsg string) {
	var buf bytes.Buffer
	if err := formTmpl.Execute(&buf, formData{Token: signed, Error: errMsg}); err != nil {
		h.log.Error("render form", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
