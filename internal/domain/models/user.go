package models

// User is the identity record kept by the store.
//
// RefreshHash is nil while the user holds no active refresh token.
type User struct {
	ID          int64
	Email       string
	PassHash    []byte
	RefreshHash []byte
}

// HasSession reports whether the user currently holds a refresh token.
func (u User) HasSession() bool {
	return len(u.RefreshHash) > 0
}
