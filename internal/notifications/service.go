package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service sends alert digests via the configured channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendDigest sends a digest via all configured notification channels
func (s *Service) SendDigest(digest *models.Digest) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(digest); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(digest); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(digest *models.Digest) error {
	message := s.buildTeamsMessage(digest)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Social Media Alert Digest - %s", strings.Title(digest.Period)),
		Text:    fmt.Sprintf("Relayed %d alerts in the last %s", digest.TotalAlerts, digest.Period),
	}

	facts := []TeamsFact{
		{Name: "Total Alerts", Value: fmt.Sprintf("%d", digest.TotalAlerts)},
		{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	for platform, count := range digest.PlatformCounts {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Alerts", strings.Title(platform)),
			Value: fmt.Sprintf("%d", count),
		})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(digest.Alerts) > 0 {
		var recent []string
		limit := 5
		if len(digest.Alerts) < limit {
			limit = len(digest.Alerts)
		}

		for i := len(digest.Alerts) - limit; i < len(digest.Alerts); i++ {
			alert := digest.Alerts[i]
			recent = append(recent, fmt.Sprintf("**%s** - %s (%s)",
				alert.Platform, alert.Message, alert.Timestamp.Format("Jan 2 15:04")))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Recent Alerts",
			ActivityText:  strings.Join(recent, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("Social Media Alert Digest - %s (%d alerts)",
		strings.Title(digest.Period), digest.TotalAlerts)

	htmlBody, err := s.buildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(digest))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailHTML(digest *models.Digest) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Social Media Alert Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1a1a2e; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .alert { border-left: 4px solid #1a1a2e; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .alert-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Social Media Alert Digest</h1>
        <p>{{.Period}} digest generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Alerts:</strong> {{.TotalAlerts}}</p>
        {{range $platform, $count := .PlatformCounts}}
            <p><strong>{{$platform | title}}:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Alerts}}
    <h2>Recent Alerts</h2>
    {{range $index, $alert := .Alerts}}
        {{if lt $index 10}}
        <div class="alert">
            <div>{{$alert.Message}}</div>
            <div class="alert-meta">
                {{$alert.Platform}} | {{$alert.Timestamp.Format "Jan 2, 2006 15:04 UTC"}}
            </div>
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the social alerts relay.</small></p>
</body>
</html>
`

	t := template.New("email").Funcs(template.FuncMap{
		"title": strings.Title,
	})

	t, err := t.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, digest); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Social Media Alert Digest - %s\n", strings.Title(digest.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Alerts: %d\n", digest.TotalAlerts))
	for platform, count := range digest.PlatformCounts {
		text.WriteString(fmt.Sprintf("%s: %d\n", strings.Title(platform), count))
	}

	if len(digest.Alerts) > 0 {
		text.WriteString("\nRECENT ALERTS\n")
		text.WriteString("=============\n")

		limit := 10
		if len(digest.Alerts) < limit {
			limit = len(digest.Alerts)
		}

		for i := 0; i < limit; i++ {
			alert := digest.Alerts[i]
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, alert.Message))
			text.WriteString(fmt.Sprintf("   Platform: %s | Time: %s\n",
				alert.Platform, alert.Timestamp.Format("Jan 2, 2006 15:04")))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the social alerts relay.\n")

	return text.String()
}
