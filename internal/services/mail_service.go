package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type IMailService interface {
	SendPaymentFailedNotice(to, orgName string) error
}

// SMTPConfig holds SMTP + branding config.
type SMTPConfig struct {
	Host       string // e.g. "smtp.gmail.com"
	Port       int    // e.g. 587 (STARTTLS) or 465 (SMTPS)
	Username   string
	Password   string
	From       string // envelope from, e.g. "billing@voxbill.io"
	FromName   string // display name
	UseSSL     bool   // true for SMTPS 465, false for STARTTLS 587
	RequireTLS bool   // if true, fail if STARTTLS not available

	AppName    string
	AppBaseURL string // e.g. "https://app.voxbill.io"
}

type smtpMailService struct {
	cfg     SMTPConfig
	htmlTpl *template.Template
	textTpl *template.Template
}

func NewSMTPMailService(cfg SMTPConfig) (IMailService, error) {
	htmlTpl := template.Must(template.New("noticeHTML").Parse(noticeHTMLTemplate))
	textTpl := template.Must(template.New("noticeText").Parse(noticeTextTemplate))

	return &smtpMailService{
		cfg:     cfg,
		htmlTpl: htmlTpl,
		textTpl: textTpl,
	}, nil
}

func (s *smtpMailService) SendPaymentFailedNotice(to, orgName string) error {
	subject := "Payment failed for your subscription"
	link := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/billing"

	html, text, err := s.renderEmail(noticeData{
		Title:     subject,
		OrgName:   orgName,
		Intro:     "We could not collect payment for your latest invoice. Your subscription is now past due. Please update your payment method to avoid interruption of service.",
		ButtonURL: link,
		ButtonTxt: "Update payment method",
		AppName:   s.cfg.AppName,
		Year:      time.Now().Year(),
	})
	if err != nil {
		return err
	}
	return s.send(to, subject, html, text)
}

// ------------------- Rendering -------------------

type noticeData struct {
	Title     string
	OrgName   string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const noticeHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f8fafc; color: #0f172a; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .wrapper { width: 100%; padding: 40px 16px; box-sizing: border-box; }
    .container { width: 100%; max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 12px; overflow: hidden; box-shadow: 0 10px 30px rgba(0,0,0,0.08); }
    .header { padding: 28px 32px 20px; border-bottom: 1px solid rgba(0,0,0,0.06); }
    .brand { font-weight: 700; letter-spacing: 0.5px; font-size: 20px; color: #dc2626; text-transform: uppercase; }
    .hero { padding: 32px; }
    h1 { margin: 0 0 16px; font-size: 24px; font-weight: 700; color: #0f172a; line-height: 1.3; }
    p { margin: 0 0 20px; line-height: 1.7; color: #475569; font-size: 16px; }
    .btn { display: inline-block; padding: 14px 28px; background: #dc2626; color: #ffffff !important; text-decoration: none; border-radius: 10px; font-weight: 600; font-size: 15px; }
    .footer { padding: 20px 32px; color: #64748b; font-size: 13px; text-align: center; border-top: 1px solid rgba(0,0,0,0.06); }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="header"><span class="brand">{{.AppName}}</span></div>
      <div class="hero">
        <h1>{{.Title}}</h1>
        <p>Hi {{.OrgName}},</p>
        <p>{{.Intro}}</p>
        {{if .ButtonURL}}
          <p><a href="{{.ButtonURL}}" class="btn">{{.ButtonTxt}}</a></p>
        {{end}}
      </div>
      <div class="footer">
        © {{.Year}} {{.AppName}}. All rights reserved.
      </div>
    </div>
  </div>
</body>
</html>`

const noticeTextTemplate = `{{.Title}}

Hi {{.OrgName}},

{{.Intro}}

{{if .ButtonURL}}{{.ButtonTxt}}:
{{.ButtonURL}}
{{end}}

(c) {{.Year}} {{.AppName}}
`

func (s *smtpMailService) renderEmail(data noticeData) (html string, text string, err error) {
	var hb, tb bytes.Buffer

	if err = s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err = s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// ------------------- SMTP Send -------------------

func (s *smtpMailService) send(to, subject, htmlBody, textBody string) error {
	fromHeader := s.formatFromHeader()
	date := time.Now().Format(time.RFC1123Z)
	boundary := fmt.Sprintf("mixed_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = msg.WriteString(fmt.Sprintf(format, a...)) }

	write("From: %s\r\n", fromHeader)
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", subject)
	write("Date: %s\r\n", date)
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	write("\r\n")

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 7bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 7bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if s.cfg.UseSSL {
		// SMTPS (implicit TLS, usually port 465)
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		return s.submit(c, auth, to, msg.Bytes())
	}

	// STARTTLS path (typically port 587)
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
		if err = c.StartTLS(tlsCfg); err != nil {
			return err
		}
	} else if s.cfg.RequireTLS {
		return fmt.Errorf("server does not support STARTTLS and RequireTLS=true")
	}

	return s.submit(c, auth, to, msg.Bytes())
}

func (s *smtpMailService) submit(c *smtp.Client, auth smtp.Auth, to string, msg []byte) error {
	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpMailService) formatFromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", name, s.cfg.From)
}
