package commands

import (
	"fmt"
	"strings"

	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
)

var incidentStatusEmoji = map[string]string{
	"triggered":    ":octagonal_sign:",
	"acknowledged": ":warning:",
	"resolved":     ":white_check_mark:",
}

var serviceStatusEmoji = map[string]string{
	"active":      ":white_check_mark:",
	"warning":     ":warning:",
	"critical":    ":octagonal_sign:",
	"maintenance": ":double_vertical_bar:",
	"disabled":    ":black_square_for_stop:",
}

func incidentLink(incident *pd.Incident) string {
	return fmt.Sprintf("*<%s|[#%d]>* %s", incident.HTMLURL, incident.IncidentNumber, incident.Title)
}

func referenceLink(ref pd.Reference) string {
	return fmt.Sprintf("<%s|%s>", ref.HTMLURL, ref.Summary)
}

func assignmentList(assignments []pd.Assignment) string {
	links := make([]string, 0, len(assignments))
	for _, a := range assignments {
		links = append(links, referenceLink(a.Assignee))
	}

	return strings.Join(links, ", ")
}

// makeIncidentAttachments renders one incident as an interactive attachment:
// status and service fields always, plus acknowledge/resolve buttons while
// the incident is still open.
func makeIncidentAttachments(incident *pd.Incident) []models.Attachment {
	response := fmt.Sprintf("%s %s", incidentStatusEmoji[incident.Status], incidentLink(incident))

	fields := []models.AttachmentField{
		{Title: "Status", Value: titleCase(incident.Status), Short: true},
		{Title: "Service", Value: referenceLink(incident.Service), Short: true},
	}

	var actions []models.AttachmentAction

	if incident.Status == "triggered" || incident.Status == "acknowledged" {
		fields = append(fields, models.AttachmentField{
			Title: "Assigned To",
			Value: assignmentList(incident.Assignments),
			Short: true,
		})
		actions = append(actions,
			models.AttachmentAction{Name: "acknowledge", Text: "Acknowledge", Type: "button", Value: incident.ID},
			models.AttachmentAction{Name: "resolve", Text: "Resolve", Type: "button", Value: incident.ID},
		)
	}

	actions = append(actions, models.AttachmentAction{Name: "annotate", Text: "Add Note", Type: "button", Value: incident.ID})

	return []models.Attachment{{
		Text:           response,
		Color:          models.Green,
		AttachmentType: "default",
		CallbackID:     "incidents",
		Fields:         fields,
		Actions:        actions,
	}}
}

// makeEPText renders an escalation policy with whoever is currently on call
// at each level.
func makeEPText(ep *pd.EscalationPolicy) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":phone: Escalation policy <%s|%s>:\n", ep.HTMLURL, ep.Summary)

	byLevel := map[int][]string{}
	maxLevel := 0
	for _, entry := range ep.CurrentOncalls {
		byLevel[entry.EscalationLevel] = append(byLevel[entry.EscalationLevel], referenceLink(entry.User))
		if entry.EscalationLevel > maxLevel {
			maxLevel = entry.EscalationLevel
		}
	}

	for level := 1; level <= maxLevel; level++ {
		oncalls, found := byLevel[level]
		if !found {
			continue
		}

		fmt.Fprintf(&b, "\tLevel %d: %s\n", level, strings.Join(oncalls, ", "))
	}

	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
