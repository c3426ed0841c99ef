package processor

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrMissingName rejects records without a usable company name. Everything
// else degrades gracefully, the name does not.
var ErrMissingName = errors.New("company name is required")

// Validator checks and canonicalizes scraped field maps. Invalid optional
// fields are dropped, not failed.
type Validator struct {
	defaultRegion string
}

func NewValidator() *Validator {
	return &Validator{defaultRegion: "DE"}
}

// Validate returns a cleaned copy of fields. A missing or too-short
// company_name is the only hard error.
func (v *Validator) Validate(fields map[string]any) (map[string]any, error) {
	if v == nil {
		return nil, fmt.Errorf("validator is nil")
	}

	name := strings.TrimSpace(str(fields["company_name"]))
	if len([]rune(name)) < 2 {
		return nil, ErrMissingName
	}

	out := make(map[string]any, len(fields))
	for k, val := range fields {
		out[k] = val
	}
	out["company_name"] = name

	if email := strings.TrimSpace(str(fields["email"])); email != "" {
		if cleaned, ok := v.validEmail(email); ok {
			out["email"] = cleaned
		} else {
			delete(out, "email")
		}
	}
	if phone := strings.TrimSpace(str(fields["phone"])); phone != "" {
		if cleaned, ok := v.validPhone(phone); ok {
			out["phone"] = cleaned
		} else {
			delete(out, "phone")
		}
	}
	if website := strings.TrimSpace(str(fields["website"])); website != "" {
		if cleaned, ok := v.validWebsite(website); ok {
			out["website"] = cleaned
		} else {
			delete(out, "website")
		}
	}
	if postal := strings.TrimSpace(str(fields["postal_code"])); postal != "" {
		if validPostalCode(postal) {
			out["postal_code"] = postal
		} else {
			delete(out, "postal_code")
		}
	}

	return out, nil
}

func (v *Validator) validEmail(email string) (string, bool) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

// validPhone parses against the German region and renders the
// international format, "+49 30 1234567".
func (v *Validator) validPhone(phone string) (string, bool) {
	num, err := phonenumbers.Parse(phone, v.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL), true
}

func (v *Validator) validWebsite(website string) (string, bool) {
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

// German postal codes are exactly five digits.
func validPostalCode(postal string) bool {
	if len(postal) != 5 {
		return false
	}
	for _, r := range postal {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
