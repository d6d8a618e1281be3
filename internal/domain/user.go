package domain

import "strings"

// User is an operator account as read from the user directory.
type User struct {
	ID          string
	Username    string
	DisplayName string
}

// OperatorName returns the name printed on labels and encoded into lot
// codes: the display name when set, otherwise the username.
func (u User) OperatorName() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}
