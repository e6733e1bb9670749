package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
)

// seedFile is the fixture format for STORE=memory, standing in for the
// identity service's users and provisioned providers.
type seedFile struct {
	Users []struct {
		ID          string `json:"id"`
		FullName    string `json:"full_name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Nationality string `json:"nationality"`
	} `json:"users"`
	Providers []struct {
		ID                    string   `json:"id"`
		UserID                string   `json:"user_id"`
		Department            string   `json:"department"`
		Title                 string   `json:"title"`
		Specializations       []string `json:"specializations"`
		MaxAppointmentsPerDay int      `json:"max_appointments_per_day"`
	} `json:"providers"`
}

func seedMemory(mem *storage.Memory, path string) (users, providers int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for _, u := range f.Users {
		mem.AddUser(model.Contact{ID: u.ID, FullName: u.FullName, Email: u.Email, Phone: u.Phone, Nationality: u.Nationality})
	}
	for _, p := range f.Providers {
		err := mem.AddProvider(model.Provider{
			ID:                    p.ID,
			UserID:                p.UserID,
			Department:            p.Department,
			Title:                 p.Title,
			Specializations:       p.Specializations,
			MaxAppointmentsPerDay: p.MaxAppointmentsPerDay,
		})
		if err != nil {
			return len(f.Users), providers, err
		}
		providers++
	}
	return len(f.Users), providers, nil
}
