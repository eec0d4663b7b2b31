package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const postmarkAPI = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendMagicLink sends a magic link email for login, registration, or invitation.
func (c *Client) SendMagicLink(toEmail, token, purpose, familyName string) error {
	var subject, action string
	switch purpose {
	case "login":
		subject = "Sign in to Hearth"
		action = "sign in"
	case "register":
		subject = "Welcome to Hearth"
		action = "complete your registration"
	case "invite":
		subject = fmt.Sprintf("You've been invited to %s on Hearth", familyName)
		action = "accept your invitation"
	default:
		subject = "Your Hearth link"
		action = "continue"
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", c.baseURL, token)
	textBody := fmt.Sprintf("Click the link below to %s:\n\n%s\n\nThis link expires in 15 minutes.", action, link)
	htmlBody := fmt.Sprintf(
		`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in 15 minutes.</p>`,
		action, link, action,
	)

	return c.send(toEmail, subject, textBody, htmlBody)
}

// SendChoreReminder sends a single reminder for one task.
func (c *Client) SendChoreReminder(toEmail, taskTitle, tier string, due time.Time, daysUntilDue int) error {
	var when string
	switch {
	case daysUntilDue < 0:
		when = "overdue"
	case daysUntilDue == 0:
		when = "due today"
	case daysUntilDue == 1:
		when = "due tomorrow"
	default:
		when = fmt.Sprintf("due in %d days", daysUntilDue)
	}

	subject := fmt.Sprintf("Reminder: %s is %s", taskTitle, when)
	textBody := fmt.Sprintf("Your chore %q is %s (due %s).\n\nOpen %s/tasks to see the details.",
		taskTitle, when, due.Format("Mon Jan 2, 3:04 PM"), c.baseURL)
	htmlBody := fmt.Sprintf(
		`<p>Your chore <strong>%s</strong> is %s (due %s).</p><p><a href="%s/tasks">Open your task list</a></p>`,
		taskTitle, when, due.Format("Mon Jan 2, 3:04 PM"), c.baseURL,
	)

	return c.send(toEmail, subject, textBody, htmlBody)
}

// SendTaskAssigned notifies a member that a chore was assigned to them.
func (c *Client) SendTaskAssigned(toEmail, taskTitle string, due *time.Time) error {
	subject := fmt.Sprintf("New chore: %s", taskTitle)
	when := "with no due date yet"
	if due != nil {
		when = "due " + due.Format("Mon Jan 2, 3:04 PM")
	}
	textBody := fmt.Sprintf("You have a new chore %q, %s.\n\nOpen %s/tasks to see the details.",
		taskTitle, when, c.baseURL)
	htmlBody := fmt.Sprintf(
		`<p>You have a new chore <strong>%s</strong>, %s.</p><p><a href="%s/tasks">Open your task list</a></p>`,
		taskTitle, when, c.baseURL,
	)

	return c.send(toEmail, subject, textBody, htmlBody)
}

// DigestSummary carries the rendered digest counts and titles.
type DigestSummary struct {
	Date                 time.Time
	CompletedTitles      []string
	OverdueTitles        []string
	CompletedCount       int
	OverdueCount         int
	PendingApprovalCount int
	TotalPointsEarned    int
}

// SendDailyDigest sends the once-daily family summary.
func (c *Client) SendDailyDigest(toEmail string, d DigestSummary) error {
	subject := fmt.Sprintf("Your family summary for %s", d.Date.Format("Monday, Jan 2"))

	var text strings.Builder
	fmt.Fprintf(&text, "Completed: %d tasks (%d points earned)\n", d.CompletedCount, d.TotalPointsEarned)
	for _, title := range d.CompletedTitles {
		fmt.Fprintf(&text, "  - %s\n", title)
	}
	fmt.Fprintf(&text, "Overdue: %d tasks\n", d.OverdueCount)
	for _, title := range d.OverdueTitles {
		fmt.Fprintf(&text, "  - %s\n", title)
	}
	fmt.Fprintf(&text, "Awaiting photo approval: %d\n", d.PendingApprovalCount)

	var html strings.Builder
	fmt.Fprintf(&html, "<h2>Your family summary</h2><p>Completed: <strong>%d</strong> tasks, <strong>%d</strong> points earned.</p>", d.CompletedCount, d.TotalPointsEarned)
	if len(d.CompletedTitles) > 0 {
		html.WriteString("<ul>")
		for _, title := range d.CompletedTitles {
			fmt.Fprintf(&html, "<li>%s</li>", title)
		}
		html.WriteString("</ul>")
	}
	fmt.Fprintf(&html, "<p>Overdue: <strong>%d</strong> tasks.</p>", d.OverdueCount)
	if len(d.OverdueTitles) > 0 {
		html.WriteString("<ul>")
		for _, title := range d.OverdueTitles {
			fmt.Fprintf(&html, "<li>%s</li>", title)
		}
		html.WriteString("</ul>")
	}
	fmt.Fprintf(&html, "<p>Awaiting photo approval: <strong>%d</strong>.</p>", d.PendingApprovalCount)

	return c.send(toEmail, subject, text.String(), html.String())
}

func (c *Client) send(toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkAPI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
