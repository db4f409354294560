package domain

import (
	"regexp"
	"strings"
)

// Customer is a buyer's saved delivery profile. Saved after the first
// successful order and used to prefill the next one.
type Customer struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	District string `json:"district,omitempty"`
	Upazila  string `json:"upazila,omitempty"`
	Email    string `json:"email,omitempty"`
}

// IsEmpty reports whether no profile fields are set.
func (c Customer) IsEmpty() bool {
	return c.Name == "" && c.Phone == "" && c.Address == "" &&
		c.District == "" && c.Upazila == "" && c.Email == ""
}

// Merge fills blank fields of c from the fallback profile.
func (c Customer) Merge(fallback Customer) Customer {
	if c.Name == "" {
		c.Name = fallback.Name
	}
	if c.Phone == "" {
		c.Phone = fallback.Phone
	}
	if c.Address == "" {
		c.Address = fallback.Address
	}
	if c.District == "" {
		c.District = fallback.District
	}
	if c.Upazila == "" {
		c.Upazila = fallback.Upazila
	}
	if c.Email == "" {
		c.Email = fallback.Email
	}
	return c
}

var (
	bdPhoneIntl  = regexp.MustCompile(`^\+?8801[3-9]\d{8}$`)
	bdPhoneLocal = regexp.MustCompile(`^01[3-9]\d{8}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidBDPhone reports whether s is a Bangladeshi mobile number in
// either local (01XXXXXXXXX) or international (+8801XXXXXXXXX) form.
func ValidBDPhone(s string) bool {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return bdPhoneIntl.MatchString(s) || bdPhoneLocal.MatchString(s)
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}
