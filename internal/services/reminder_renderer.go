package services

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"strings"
	texttmpl "text/template"

	"classreminder/internal/models"
)

//go:embed templates/class_reminder.txt templates/class_reminder.gohtml
var templateFS embed.FS

var (
	reminderText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/class_reminder.txt")).Option("missingkey=error")
	reminderHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/class_reminder.gohtml")).Option("missingkey=error")
)

// ReminderMessage is the rendered class reminder handed to the mail queue
type ReminderMessage struct {
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	CourseName     string `json:"course_name"`
	BatchName      string `json:"batch_name"`
	Day            string `json:"day"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	JoinURL        string `json:"join_url,omitempty"`
	Subject        string `json:"subject"`
	TextBody       string `json:"-"`
	HTMLBody       string `json:"-"`
}

// RenderReminder builds the reminder for one student of an occurrence.
// Day and times are used exactly as stored; they are already in the display timezone.
func RenderReminder(occ models.ClassOccurrence, student models.Student) (ReminderMessage, error) {
	if occ.CourseID == nil || occ.Course == nil {
		return ReminderMessage{}, &ValidationError{Field: "course", Reason: fmt.Sprintf("occurrence %d has no course", occ.ID)}
	}
	if strings.TrimSpace(occ.Course.Title) == "" {
		return ReminderMessage{}, &ValidationError{Field: "course", Reason: fmt.Sprintf("course %d has no title", occ.Course.ID)}
	}
	if occ.BatchID == nil || occ.Batch == nil {
		return ReminderMessage{}, &ValidationError{Field: "batch", Reason: fmt.Sprintf("occurrence %d has no batch", occ.ID)}
	}
	if occ.StartTime == "" {
		return ReminderMessage{}, &ValidationError{Field: "start_time", Reason: fmt.Sprintf("occurrence %d has no start time", occ.ID)}
	}
	if occ.EndTime == "" {
		return ReminderMessage{}, &ValidationError{Field: "end_time", Reason: fmt.Sprintf("occurrence %d has no end time", occ.ID)}
	}
	if strings.TrimSpace(student.Email) == "" {
		return ReminderMessage{}, &ValidationError{Field: "email", Reason: fmt.Sprintf("student %d has no email", student.ID)}
	}

	name := student.Name
	if name == "" {
		name = student.Email
	}

	msg := ReminderMessage{
		RecipientEmail: student.Email,
		RecipientName:  name,
		CourseName:     occ.Course.Title,
		BatchName:      occ.Batch.Name,
		Day:            occ.Day,
		StartTime:      occ.StartTime,
		EndTime:        occ.EndTime,
		JoinURL:        occ.JoinURL,
		Subject:        fmt.Sprintf("Reminder: %s class at %s", occ.Course.Title, occ.StartTime),
	}

	var buf bytes.Buffer
	if err := reminderText.Execute(&buf, msg); err != nil {
		return ReminderMessage{}, fmt.Errorf("render text reminder: %w", err)
	}
	msg.TextBody = buf.String()

	buf.Reset()
	if err := reminderHTML.Execute(&buf, msg); err != nil {
		return ReminderMessage{}, fmt.Errorf("render html reminder: %w", err)
	}
	msg.HTMLBody = buf.String()

	return msg, nil
}
