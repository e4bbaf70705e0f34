package authsdk

import "time"

// ErrorResponse is the wire form of APIError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Auth Types
// ============================================================================

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by login. The same tokens are also set as
// HTTP-only cookies.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// RefreshRequest may be sent empty when the refresh_token cookie is present.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetTokenResponse is returned when a reset token checks out.
type ResetTokenResponse struct {
	UserID string `json:"user_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// User Types
// ============================================================================

// UserResponse is the public view of an account.
type UserResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpdateProfileRequest only changes the fields that are set.
type UpdateProfileRequest struct {
	Email           *string `json:"email,omitempty"`
	Username        *string `json:"username,omitempty"`
	ProfileImageURL *string `json:"profile_image_url,omitempty"`
}

// ============================================================================
// Todo Types
// ============================================================================

type CreateTodoRequest struct {
	Content string     `json:"content"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// UpdateTodoRequest only changes the fields that are set. ClearDueDate
// removes the due date.
type UpdateTodoRequest struct {
	Content      *string    `json:"content,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

type TodoResponse struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Mail is the mail relay circuit state, when mail is configured
	Mail string `json:"mail,omitempty"`
}
