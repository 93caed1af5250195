package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/pkg/config"
)

// EmailNotifier sends email notifications for critical alerts
type EmailNotifier struct {
	config *config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

type alertEmailData struct {
	NodeID    string
	Type      protocol.AlertType
	Severity  protocol.AlertSeverity
	Message   string
	Timestamp string
}

// SendAlertNotification sends an email for an alert
func (e *EmailNotifier) SendAlertNotification(msg *protocol.AlertMessage) error {
	alert := msg.Alert

	subject := fmt.Sprintf("⚠️ Sensor Alert [%s] - %s", alert.Severity, alert.NodeID)
	if alert.Severity == protocol.SeverityCritical {
		subject = fmt.Sprintf("🚨 Sensor Alert [%s] - %s", alert.Severity, alert.NodeID)
	}

	body, err := e.renderAlertTemplate(alertEmailData{
		NodeID:    alert.NodeID,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Timestamp: time.Unix(alert.Timestamp, 0).UTC().Format(time.RFC1123),
	})
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func (e *EmailNotifier) renderAlertTemplate(data alertEmailData) (string, error) {
	tmpl := `
Sensor Alert
============

Node: {{.NodeID}}
Type: {{.Type}}
Severity: {{.Severity}}
Time: {{.Timestamp}}

{{.Message}}

Description:
Node {{.NodeID}} reported a {{.Severity}} {{.Type}} condition. Repeated
alerts of the same type for this node are suppressed for 20 minutes, so
this is the first occurrence within that window.

Please take appropriate action.

---
SensorNet Notification System
`

	t, err := template.New("alert").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		fmt.Printf("SMTP not configured, skipping email:\nSubject: %s\n%s\n", subject, body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("Email sent successfully: %s\n", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	fmt.Println("SMTP connection test successful")
	return nil
}
