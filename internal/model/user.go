package model

// User represents a user in the database.
type User struct {
	ID             int64
	Email          string
	HashedPassword string
}

// Response returns the public projection of u.
func (u User) Response() UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email}
}

// CreateUserRequest represents a user registration request.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents user data safe for API responses (no password hash).
type UserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
