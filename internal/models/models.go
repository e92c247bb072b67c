package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Column headers of a directory source row.
const (
	ColumnBackground = "Background"
	ColumnInterests  = "Interests"
	ColumnPhone      = "Phone"
	ColumnEmail      = "Email"
	ColumnSources    = "Preferred Sources"
)

// ErrIncompleteRecord marks a row without a phone number or an email address.
var ErrIncompleteRecord = errors.New("record is missing phone or email")

// Record is one directory source row keyed by column header.
type Record map[string]string

// UserProfile represents a briefing recipient
type UserProfile struct {
	Background string   `json:"background"`
	Interests  []string `json:"interests"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	Sources    []string `json:"preferred_sources"`
}

// ProfileFromRecord builds a profile from a source row.
func ProfileFromRecord(rec Record) (UserProfile, error) {
	phone := strings.TrimSpace(rec[ColumnPhone])
	email := strings.TrimSpace(rec[ColumnEmail])
	if phone == "" || email == "" {
		return UserProfile{}, ErrIncompleteRecord
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return UserProfile{}, fmt.Errorf("invalid email %q: %w", email, err)
	}

	return UserProfile{
		Background: strings.TrimSpace(rec[ColumnBackground]),
		Interests:  SplitList(rec[ColumnInterests]),
		Phone:      phone,
		Email:      addr.Address,
		Sources:    SplitList(rec[ColumnSources]),
	}, nil
}

// SplitList splits a semicolon-delimited cell, dropping empty items.
func SplitList(cell string) []string {
	parts := strings.Split(cell, ";")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
