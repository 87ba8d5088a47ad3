package pd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// fetchPageSize is the limit sent on paginated list calls.
const fetchPageSize = 100

// Reference is the short form PagerDuty uses to point at another resource.
type Reference struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	Summary string `json:"summary,omitempty"`
	HTMLURL string `json:"html_url,omitempty"`
}

type Assignment struct {
	Assignee Reference `json:"assignee"`
}

type Incident struct {
	ID             string       `json:"id"`
	IncidentNumber int          `json:"incident_number"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Status         string       `json:"status"`
	Summary        string       `json:"summary"`
	HTMLURL        string       `json:"html_url"`
	Service        Reference    `json:"service"`
	Assignments    []Assignment `json:"assignments"`
}

type Service struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Summary          string    `json:"summary"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	HTMLURL          string    `json:"html_url"`
	EscalationPolicy Reference `json:"escalation_policy"`
}

type EscalationRule struct {
	EscalationDelayInMinutes int         `json:"escalation_delay_in_minutes"`
	Targets                  []Reference `json:"targets"`
}

type OncallEntry struct {
	EscalationLevel int       `json:"escalation_level"`
	User            Reference `json:"user"`
}

type EscalationPolicy struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Summary         string           `json:"summary"`
	HTMLURL         string           `json:"html_url"`
	EscalationRules []EscalationRule `json:"escalation_rules"`
	CurrentOncalls  []OncallEntry    `json:"current_oncall"`
}

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Summary string `json:"summary"`
	HTMLURL string `json:"html_url"`
}

// Me resolves the authenticated account: its user id, email, and the
// subdomain parsed from the profile URL host ("acme.pagerduty.com" -> "acme").
func (s *Session) Me(ctx context.Context) (*User, string, error) {
	var out struct {
		User User `json:"user"`
	}

	if err := s.Get(ctx, "users/me", nil, &out); err != nil {
		return nil, "", fmt.Errorf("pd.Me: %w", err)
	}

	profileURL, err := url.Parse(out.User.HTMLURL)
	if err != nil {
		return nil, "", fmt.Errorf("pd.Me: failed to parse profile url %q: %w", out.User.HTMLURL, err)
	}

	subdomain := strings.Split(profileURL.Host, ".")[0]
	if subdomain == "" {
		return nil, "", fmt.Errorf("pd.Me: no subdomain in profile url %q", out.User.HTMLURL)
	}

	return &out.User, subdomain, nil
}

type pagination struct {
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	More   bool `json:"more"`
}

// FetchIncidents returns all open (triggered or acknowledged) incidents,
// following offset pagination until the API reports no more pages.
func (s *Session) FetchIncidents(ctx context.Context) ([]Incident, error) {
	var all []Incident

	for offset := 0; ; {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchPageSize))
		params.Set("offset", strconv.Itoa(offset))
		params.Add("statuses[]", "triggered")
		params.Add("statuses[]", "acknowledged")

		var page struct {
			pagination
			Incidents []Incident `json:"incidents"`
		}

		if err := s.Get(ctx, "incidents", params, &page); err != nil {
			return nil, fmt.Errorf("pd.FetchIncidents: %w", err)
		}

		all = append(all, page.Incidents...)
		if !page.More {
			return all, nil
		}

		offset += len(page.Incidents)
	}
}

// FetchServices returns every service in the account.
func (s *Session) FetchServices(ctx context.Context) ([]Service, error) {
	var all []Service

	for offset := 0; ; {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page struct {
			pagination
			Services []Service `json:"services"`
		}

		if err := s.Get(ctx, "services", params, &page); err != nil {
			return nil, fmt.Errorf("pd.FetchServices: %w", err)
		}

		all = append(all, page.Services...)
		if !page.More {
			return all, nil
		}

		offset += len(page.Services)
	}
}

// FetchEscalationPolicies returns every escalation policy in the account.
func (s *Session) FetchEscalationPolicies(ctx context.Context) ([]EscalationPolicy, error) {
	var all []EscalationPolicy

	for offset := 0; ; {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page struct {
			pagination
			EscalationPolicies []EscalationPolicy `json:"escalation_policies"`
		}

		if err := s.Get(ctx, "escalation_policies", params, &page); err != nil {
			return nil, fmt.Errorf("pd.FetchEscalationPolicies: %w", err)
		}

		all = append(all, page.EscalationPolicies...)
		if !page.More {
			return all, nil
		}

		offset += len(page.EscalationPolicies)
	}
}
