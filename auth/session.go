package auth

import (
	"encoding/json"
	"strings"
)

// ParseID normalizes a JSON number or string id to a string. null and a
// missing value give "".
func ParseID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

// User is the identity record of the signed-in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UnmarshalJSON accepts numeric and string ids.
func (u *User) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
		Email    string          `json:"email"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.ID = ParseID(aux.ID)
	u.Username = aux.Username
	u.Email = aux.Email
	return nil
}

// Session is a snapshot of what the Token Store holds.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// IsAuthenticated is true only when both an access token and a user are present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}
