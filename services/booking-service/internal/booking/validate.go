package booking

import (
	"strings"
	"unicode/utf8"
)

type Customer struct {
	Name  string
	Phone string
	Email string
	Note  string
}

func (c Customer) normalized() Customer {
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.TrimSpace(c.Email),
		Note:  strings.TrimSpace(c.Note),
	}
}

// validate applies the minimal contact rules and returns a user-facing message, or "".
func (c Customer) validate() string {
	if utf8.RuneCountInString(c.Name) < 2 {
		return msgName
	}
	if utf8.RuneCountInString(c.Phone) < 6 {
		return msgPhone
	}
	if !strings.Contains(c.Email, "@") {
		return msgEmail
	}
	return ""
}
