package jobs

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

type named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Vacancy struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Area   named  `json:"area,omitempty"`
	Salary *struct {
		From     int    `json:"from,omitempty"`
		To       int    `json:"to,omitempty"`
		Currency string `json:"currency,omitempty"`
	} `json:"salary,omitempty"`
	Experience named `json:"experience,omitempty"`
	Schedule   named `json:"schedule,omitempty"`
	Employment named `json:"employment,omitempty"`
	Employer   struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string  `json:"alternate_url,omitempty"`
	Description  string  `json:"description,omitempty"`
	KeySkills    []named `json:"key_skills,omitempty"`
	Snippet      struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	ProfessionalRoles []named `json:"professional_roles,omitempty"`
}

type Vacancies struct {
	Items []*Vacancy
	Found int
}

func (v *Vacancies) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Items)
}

func (v *Vacancies) FindByID(id string) *Vacancy {
	for _, vacancy := range v.Items {
		if vacancy.ID == id {
			return vacancy
		}
	}
	return nil
}

// Title is a one-line label for menus.
func (va *Vacancy) Title() string {
	title := va.Name
	if va.Employer.Name != "" {
		title += " at " + va.Employer.Name
	}
	if va.Area.Name != "" {
		title += " (" + va.Area.Name + ")"
	}
	return title
}

// JobDescription renders the vacancy as plain text for the interview service.
func (va *Vacancy) JobDescription() string {
	var b strings.Builder

	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	line("Position", va.Name)
	line("Company", va.Employer.Name)
	line("Location", va.Area.Name)
	line("Experience", va.Experience.Name)
	line("Schedule", va.Schedule.Name)
	line("Employment", va.Employment.Name)

	roles := make([]string, 0, len(va.ProfessionalRoles))
	for _, r := range va.ProfessionalRoles {
		roles = append(roles, r.Name)
	}
	line("Roles", strings.Join(roles, ", "))

	skills := make([]string, 0, len(va.KeySkills))
	for _, s := range va.KeySkills {
		skills = append(skills, s.Name)
	}
	line("Key skills", strings.Join(skills, ", "))

	description := StripHTML(va.Description)
	if description == "" {
		description = strings.TrimSpace(StripHTML(va.Snippet.Responsibility) + "\n" + StripHTML(va.Snippet.Requirement))
	}
	if description != "" {
		b.WriteString("\n")
		b.WriteString(description)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

var (
	blockTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/li|/ul|/ol|/h[1-6]|/div)\s*/?>`)
	listItem   = regexp.MustCompile(`(?i)<\s*li[^>]*>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// StripHTML converts the limited markup hh.ru uses in descriptions to text.
func StripHTML(s string) string {
	s = blockTags.ReplaceAllString(s, "\n")
	s = listItem.ReplaceAllString(s, "- ")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
