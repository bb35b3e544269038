// Package session carries the acting user between the caller and the content
// repository. It is passed explicitly into every call; nothing here is global.
package session

type Session struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Anonymous is the zero session: nobody is logged in.
var Anonymous = Session{}

func New(userID uint, username string) Session {
	return Session{UserID: userID, Username: username}
}

func (s Session) Authenticated() bool {
	return s.UserID != 0
}
