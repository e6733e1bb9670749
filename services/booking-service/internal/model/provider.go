package model

import "time"

// Provider is a representative who publishes availability. MaxAppointmentsPerDay
// of 0 means no daily cap.
type Provider struct {
	ID                    string
	UserID                string
	FullName              string
	Email                 string
	Department            string
	Title                 string
	Specializations       []string
	MaxAppointmentsPerDay int
	CreatedAt             time.Time
}

func (p Provider) Summary() ProviderSummary {
	return ProviderSummary{
		ID:         p.ID,
		Department: p.Department,
		Title:      p.Title,
		FullName:   p.FullName,
		Email:      p.Email,
	}
}

// ProviderUpdate is one field change on a provider profile.
type ProviderUpdate interface {
	apply(*Provider)
}

type SetDepartment string
type SetTitle string
type SetSpecializations []string
type SetMaxAppointmentsPerDay int

func (u SetDepartment) apply(p *Provider) { p.Department = string(u) }
func (u SetTitle) apply(p *Provider)      { p.Title = string(u) }
func (u SetSpecializations) apply(p *Provider) {
	p.Specializations = append([]string(nil), u...)
}
func (u SetMaxAppointmentsPerDay) apply(p *Provider) { p.MaxAppointmentsPerDay = int(u) }

// ApplyProviderUpdates returns a copy of p with every update applied in order.
func ApplyProviderUpdates(p Provider, updates []ProviderUpdate) Provider {
	p.Specializations = append([]string(nil), p.Specializations...)
	for _, u := range updates {
		u.apply(&p)
	}
	return p
}

// ProviderDirectoryEntry is a provider with the weekdays they work.
type ProviderDirectoryEntry struct {
	Provider     Provider
	Availability []WeeklyAvailability
}
