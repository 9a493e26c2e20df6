package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// UnlockData fills the unlock email.
type UnlockData struct {
	Name    string
	Title   string
	Excerpt string
	AppURL  string
}

// ReminderData fills the reminder email.
type ReminderData struct {
	Name     string
	Title    string
	DaysLeft int
	AppURL   string
}

const layoutStart = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Hello {{.Name}}!</h2>`

const layoutEnd = `
  <p style="color: #666; font-size: 14px;">- The TimeCapsule Team</p>
</div>`

var unlockTemplate = template.Must(template.New("unlock").Parse(layoutStart + `
  <p>Your time capsule "<strong>{{.Title}}</strong>" is ready to be unlocked!</p>
  <p>It's time to relive that special memory from the past.</p>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <p style="margin: 0; font-style: italic;">"{{.Excerpt}}"</p>
  </div>
  <p><a href="{{.AppURL}}">Open your capsule</a> and relive the moment!</p>` + layoutEnd))

var reminderTemplate = template.Must(template.New("reminder").Parse(layoutStart + `
  <p>Just a friendly reminder that your time capsule "<strong>{{.Title}}</strong>" will unlock in {{.DaysLeft}} {{if eq .DaysLeft 1}}day{{else}}days{{end}}!</p>
  <p>Get ready to relive that special memory soon.</p>` + layoutEnd))

// RenderUnlock returns the subject and HTML body of the unlock email.
func RenderUnlock(data UnlockData) (string, string, error) {
	var body bytes.Buffer
	if err := unlockTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return "🎉 Your Time Capsule is Ready to Unlock!", body.String(), nil
}

// RenderReminder returns the subject and HTML body of the reminder email.
func RenderReminder(data ReminderData) (string, string, error) {
	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return fmt.Sprintf("⏰ Time Capsule Reminder: %s", data.Title), body.String(), nil
}

// Excerpt shortens text to at most n runes, adding an ellipsis when cut.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
