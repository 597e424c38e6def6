package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/hackgods/praxis-scheduling/internal/appointment"
)

// MessageData is everything a template may print.
type MessageData struct {
	PatientFirstName string
	PatientLastName  string
	DoctorName       string
	Specialty        string
	Date             string // "Monday, January 2, 2006"
	Time             string
	DurationMinutes  int
	LocationName     string
	Address          string
	ManageURL        string
}

type reminderCopy struct {
	Subject string
	Urgency string
	Action  string
}

var reminderCopies = map[appointment.ReminderTier]reminderCopy{
	appointment.Tier72h: {
		Subject: "Upcoming Appointment Reminder - Praxis Medical",
		Urgency: "This is a friendly reminder about your upcoming appointment.",
		Action:  "Please confirm your attendance by clicking the button below.",
	},
	appointment.Tier48h: {
		Subject: "Please Confirm Your Upcoming Appointment - Praxis Medical",
		Urgency: "Your appointment is coming up soon. We haven't received your confirmation yet.",
		Action:  "Please confirm or reschedule your appointment as soon as possible.",
	},
	appointment.Tier24h: {
		Subject: "URGENT: Appointment Confirmation Required - Praxis Medical",
		Urgency: "Your appointment is tomorrow and we still need your confirmation.",
		Action:  "Please confirm your appointment immediately to avoid cancellation.",
	},
}

const confirmationSubject = "Your Appointment Confirmation - Praxis Medical"

const emailLayout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #2c7be5; color: #fff; padding: 20px; text-align: center;">
    <h1 style="margin: 0;">Praxis Medical</h1>
    <h2 style="margin: 8px 0 0;">{{.Heading}}</h2>
  </div>
  <div style="padding: 20px;">
    <p>Dear {{.PatientFirstName}} {{.PatientLastName}},</p>
    {{block "intro" .}}{{end}}
    <div style="background-color: #f5f7fb; padding: 15px; border-radius: 6px;">
      <p><strong>Doctor:</strong> {{.DoctorName}}</p>
      <p><strong>Date:</strong> {{.Date}}</p>
      <p><strong>Time:</strong> {{.Time}}</p>
      <p><strong>Duration:</strong> {{.DurationMinutes}} minutes</p>
      <p><strong>Location:</strong> {{.LocationName}}</p>
      <p><strong>Address:</strong> {{.Address}}</p>
    </div>
    {{block "body" .}}{{end}}
    <p>Thank you for choosing Praxis Medical.</p>
  </div>
</body>
</html>`

const confirmationEmailBody = `{{define "intro"}}<p>Your appointment has been scheduled. Here are the details:</p>{{end}}
{{define "body"}}
    <p>Please arrive 15 minutes before your scheduled appointment time.</p>
    <p>If you need to reschedule or cancel your appointment, please contact us at least 24 hours in advance.</p>
    <p style="text-align: center;"><a href="{{.ManageURL}}" style="background-color: #2c7be5; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Manage Appointment</a></p>
{{end}}`

const reminderEmailBody = `{{define "intro"}}<p>{{.Urgency}}</p>{{end}}
{{define "body"}}
    <p>{{.Action}}</p>
    <p style="text-align: center;">
      <a href="{{.ManageURL}}#confirm" style="background-color: #28a745; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Confirm Appointment</a>
      <a href="{{.ManageURL}}#reschedule" style="background-color: #6c757d; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Reschedule</a>
    </p>
{{end}}`

var (
	confirmationEmailTmpl = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("confirmation").Parse(emailLayout)).Parse(confirmationEmailBody))
	reminderEmailTmpl     = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("reminder").Parse(emailLayout)).Parse(reminderEmailBody))

	confirmationSMSTmpl = template.Must(template.New("confirmation-sms").Parse(
		"Praxis Medical: Your appointment with {{.DoctorName}} is confirmed for {{.Date}} at {{.Time}}. Reply CONFIRM to confirm or CANCEL to cancel."))

	reminderSMSTmpls = map[appointment.ReminderTier]*template.Template{
		appointment.Tier72h: template.Must(template.New("72h-sms").Parse(
			"Praxis Medical: Reminder for your appointment with {{.DoctorName}} on {{.Date}} at {{.Time}}. Reply CONFIRM to confirm or RESCHEDULE to reschedule.")),
		appointment.Tier48h: template.Must(template.New("48h-sms").Parse(
			"Praxis Medical: Your appointment with {{.DoctorName}} is in 2 days ({{.Date}} at {{.Time}}). We haven't received your confirmation. Reply CONFIRM or RESCHEDULE.")),
		appointment.Tier24h: template.Must(template.New("24h-sms").Parse(
			"URGENT: Your Praxis Medical appointment with {{.DoctorName}} is TOMORROW at {{.Time}}. Please reply CONFIRM immediately to keep your slot or CANCEL to cancel.")),
	}
)

// Rendered is one message in both channel forms.
type Rendered struct {
	Subject string
	HTML    string
	SMS     string
}

func RenderConfirmation(d MessageData) (Rendered, error) {
	html, err := execHTML(confirmationEmailTmpl, struct {
		MessageData
		Heading string
	}{d, "Appointment Confirmation"})
	if err != nil {
		return Rendered{}, err
	}
	sms, err := execText(confirmationSMSTmpl, d)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: confirmationSubject, HTML: html, SMS: sms}, nil
}

func RenderReminder(tier appointment.ReminderTier, d MessageData) (Rendered, error) {
	c, ok := reminderCopies[tier]
	if !ok {
		return Rendered{}, fmt.Errorf("no reminder template for tier %q", tier)
	}
	html, err := execHTML(reminderEmailTmpl, struct {
		MessageData
		Heading string
		Urgency string
		Action  string
	}{d, "Appointment Reminder", c.Urgency, c.Action})
	if err != nil {
		return Rendered{}, err
	}
	sms, err := execText(reminderSMSTmpls[tier], d)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: c.Subject, HTML: html, SMS: sms}, nil
}

func execHTML(t *htmltemplate.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func execText(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
