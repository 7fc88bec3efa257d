// Package mail delivers notifications over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"sage/internal/domain/notify"
	"sage/pkg/logger"
)

// Config holds SMTP settings. An empty Host disables sending.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a server is configured.
func (c Config) Enabled() bool { return c.Host != "" }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier implements notify.Notifier. Failures are logged and reported as false.
type Notifier struct {
	cfg  Config
	send sendFunc
	now  func() time.Time
	log  *logger.Logger
}

var _ notify.Notifier = (*Notifier)(nil)

func NewNotifier(cfg Config, log *logger.Logger) *Notifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if log == nil {
		log = logger.Default()
	}
	return &Notifier{cfg: cfg, send: smtp.SendMail, now: time.Now, log: log.WithComponent("mail")}
}

var (
	validationTmpl = template.Must(template.New("validation").Parse(problemsLayout))
	saveTmpl       = template.Must(template.New("save").Parse(problemsLayout))
)

const problemsLayout = `<p>Hello {{.Name}},</p>
<p>{{.Intro}} <strong>{{.Product}}</strong>:</p>
<table border="1" cellpadding="4">
<tr><th>Row</th><th>Field</th><th>Error</th></tr>
{{range .Problems}}<tr><td>{{.Row}}</td><td>{{.Field}}</td><td>{{.Error}}</td></tr>
{{end}}</table>
`

type problemsView struct {
	Name     string
	Intro    string
	Product  string
	Problems []notify.Problem
}

func (n *Notifier) NotifyValidationErrors(ctx context.Context, to notify.Recipient, product string, problems []notify.Problem) bool {
	return n.problems(ctx, validationTmpl, to, "Excel Validation Errors for "+product, problemsView{
		Intro: "The uploaded file has validation errors for", Product: product, Problems: problems,
	})
}

func (n *Notifier) NotifySaveErrors(ctx context.Context, to notify.Recipient, product string, problems []notify.Problem) bool {
	return n.problems(ctx, saveTmpl, to, "Data Save Errors for "+product, problemsView{
		Intro: "Saving your data failed for", Product: product, Problems: problems,
	})
}

func (n *Notifier) problems(ctx context.Context, t *template.Template, to notify.Recipient, subject string, v problemsView) bool {
	if to.Email == "" {
		return false
	}
	v.Name = to.Username
	if v.Name == "" {
		v.Name = to.Email
	}
	var body bytes.Buffer
	if err := t.Execute(&body, v); err != nil {
		n.log.WithContext(ctx).Warnw("render email", "subject", subject, "error", err)
		return false
	}
	return n.Send(ctx, []string{to.Email}, subject, body.String())
}

// Send delivers body to every address in one message. Bodies starting with
// "<" are sent as HTML.
func (n *Notifier) Send(ctx context.Context, to []string, subject, body string) bool {
	if !n.cfg.Enabled() || len(to) == 0 {
		return false
	}
	msg := n.compose(to, subject, body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, to, msg); err != nil {
		n.log.WithContext(ctx).Warnw("email not sent", "subject", subject, "recipients", len(to), "error", err)
		return false
	}
	n.log.WithContext(ctx).Debugw("email sent", "subject", subject, "recipients", len(to))
	return true
}

func (n *Notifier) compose(to []string, subject, body string) []byte {
	contentType := "text/plain"
	if strings.HasPrefix(strings.TrimSpace(body), "<") {
		contentType = "text/html"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n\r\n", contentType)
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
