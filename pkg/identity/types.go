package identity

import "time"

// Provider identifies where an Account's credentials come from
type Provider string

// Supported account providers
const (
	ProviderEmail    Provider = "EMAIL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderGitHub   Provider = "GITHUB"
	ProviderFacebook Provider = "FACEBOOK"
)

// Valid reports whether p is a known provider
func (p Provider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return true
	}
	return false
}

// Global role tags
const (
	GlobalRoleMember     = "MEMBER"
	GlobalRoleSuperAdmin = "SUPER_ADMIN"
)

// User is an identity record
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	PasswordHash       *string    `json:"-"`
	ProfilePicture     *string    `json:"profilePicture"`
	GlobalRole         string     `json:"globalRole"`
	IsActive           bool       `json:"isActive"`
	CurrentWorkspaceID *string    `json:"currentWorkspace"`
	LastLogin          *time.Time `json:"lastLogin"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Account links a User to one provider identity. Tokens never leave the server.
type Account struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Provider     Provider   `json:"provider"`
	ProviderID   string     `json:"providerId"`
	RefreshToken *string    `json:"-"`
	AccessToken  *string    `json:"-"`
	TokenExpiry  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// WorkspaceRef is the short form of a workspace embedded in user responses
type WorkspaceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CurrentUser is the user together with their current workspace
type CurrentUser struct {
	*User
	CurrentWorkspace *WorkspaceRef `json:"currentWorkspace"`
}

// RegisterInput creates an email/password user
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ExternalLogin is the identity asserted by an external provider
type ExternalLogin struct {
	Provider     Provider
	ProviderID   string
	DisplayName  string
	Email        string
	Picture      string
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
}
