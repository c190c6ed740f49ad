package identity

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// WorkspaceProvisioner creates a first workspace for a new user inside the
// caller's transaction and points the user at it
type WorkspaceProvisioner interface {
	ProvisionDefault(ctx context.Context, tx *sql.Tx, ownerID, name string) (string, error)
}

// Service manages users, their provider accounts and credential checks
type Service struct {
	db          *sql.DB
	provisioner WorkspaceProvisioner
	bcryptCost  int
	metrics     *observability.Metrics
}

// NewService creates an identity service
func NewService(db *sql.DB, provisioner WorkspaceProvisioner, metrics *observability.Metrics) *Service {
	return &Service{
		db:          db,
		provisioner: provisioner,
		bcryptCost:  bcrypt.DefaultCost,
		metrics:     metrics,
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

const userColumns = `id, email, name, password_hash, profile_picture, global_role, is_active,
	current_workspace_id, last_login, created_at, updated_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a User and its EMAIL Account atomically and returns
// the new user id. No workspace is created; that happens on first login.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (string, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.BadRequest("invalid email address")
	}
	if len(in.Password) < 4 {
		return "", apperrors.BadRequest("password must be at least 4 characters")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperrors.BadRequest("name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	var userID string
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := findUserByEmail(ctx, tx, email); err == nil {
			return apperrors.BadRequest("email already exists!")
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		user, err := insertUser(ctx, tx, email, name, &hashStr, nil, GlobalRoleMember)
		if err != nil {
			return err
		}
		if _, err := insertAccount(ctx, tx, user.ID, ProviderEmail, email, nil); err != nil {
			return err
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	s.metrics.RecordOperation("user", "register")
	return userID, nil
}

// LoginOrCreateAccount resolves an external-provider login to a User.
//
// A known (provider, providerId) pair logs in its User and refreshes the stored
// tokens. Otherwise the User is found by email, or created, and the Account is
// linked. A User without a current workspace gets a default one. Everything
// happens in one transaction.
func (s *Service) LoginOrCreateAccount(ctx context.Context, in ExternalLogin) (*User, error) {
	if !in.Provider.Valid() || in.Provider == ProviderEmail {
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported provider: %s", in.Provider))
	}
	if in.ProviderID == "" {
		return nil, apperrors.BadRequest("provider id is required")
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.BadRequest("the provider did not return an email address")
	}

	var user *User
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		account, err := findAccount(ctx, tx, in.ProviderID)
		switch {
		case err == nil:
			user, err = getUser(ctx, tx, account.UserID)
			if err != nil {
				return err
			}
			if err := updateAccountTokens(ctx, tx, account.ID, in); err != nil {
				return err
			}
		case apperrors.IsNotFound(err):
			user, err = findUserByEmail(ctx, tx, email)
			if apperrors.IsNotFound(err) {
				user, err = insertUser(ctx, tx, email, displayName(in), nil, nullIfEmpty(in.Picture), GlobalRoleMember)
			}
			if err != nil {
				return err
			}
			if _, err := insertAccount(ctx, tx, user.ID, in.Provider, in.ProviderID, &in); err != nil {
				return err
			}
		default:
			return err
		}

		if user.CurrentWorkspaceID == nil {
			name := user.Name
			if name == "" {
				name = "My Workspace"
			}
			workspaceID, err := s.provisioner.ProvisionDefault(ctx, tx, user.ID, name)
			if err != nil {
				return fmt.Errorf("failed to create default workspace: %w", err)
			}
			user.CurrentWorkspaceID = &workspaceID
		}

		now := store.Now()
		user.LastLogin = &now
		_, err = tx.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", now, user.ID)
		if err != nil {
			return fmt.Errorf("failed to record login: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func displayName(in ExternalLogin) string {
	if in.DisplayName != "" {
		return in.DisplayName
	}
	return strings.SplitN(normalizeEmail(in.Email), "@", 2)[0]
}

// VerifyUser checks an email/password pair and returns the User
func (s *Service) VerifyUser(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM accounts WHERE provider = $1 AND provider_id = $2",
		string(ProviderEmail), email).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	user, err := getUser(ctx, s.db, userID)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NotFound("user not found for the given account")
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthenticated("invalid email or password")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthenticated("account is disabled")
	}

	now := store.Now()
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", now, user.ID); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now
	return user, nil
}

// GetUser returns a user by id
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return getUser(ctx, s.db, id)
}

// GetCurrentUser returns the user and the workspace they are pointed at
func (s *Service) GetCurrentUser(ctx context.Context, id string) (*CurrentUser, error) {
	user, err := getUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	current := &CurrentUser{User: user}
	if user.CurrentWorkspaceID != nil {
		ref := &WorkspaceRef{}
		err := s.db.QueryRowContext(ctx, "SELECT id, name FROM workspaces WHERE id = $1",
			*user.CurrentWorkspaceID).Scan(&ref.ID, &ref.Name)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get current workspace: %w", err)
		}
		if err == nil {
			current.CurrentWorkspace = ref
		}
	}
	return current, nil
}

// SeedSuperAdmin creates the super-administrator and its EMAIL account if no
// user with that email exists. An existing user is promoted. It reports
// whether a user was created.
func (s *Service) SeedSuperAdmin(ctx context.Context, email, name, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, apperrors.BadRequest("super admin email and password are required")
	}

	created := false
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := findUserByEmail(ctx, tx, email)
		if err == nil {
			_, err = tx.ExecContext(ctx, "UPDATE users SET global_role = $1, updated_at = $2 WHERE id = $3",
				GlobalRoleSuperAdmin, store.Now(), existing.ID)
			if err != nil {
				return fmt.Errorf("failed to promote super admin: %w", err)
			}
			return nil
		}
		if !apperrors.IsNotFound(err) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hashStr := string(hash)

		user, err := insertUser(ctx, tx, email, name, &hashStr, nil, GlobalRoleSuperAdmin)
		if err != nil {
			return err
		}
		if _, err := insertAccount(ctx, tx, user.ID, ProviderEmail, email, nil); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func insertUser(ctx context.Context, q store.Querier, email, name string, passwordHash, picture *string, globalRole string) (*User, error) {
	now := store.Now()
	user := &User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           name,
		PasswordHash:   passwordHash,
		ProfilePicture: picture,
		GlobalRole:     globalRole,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, profile_picture, global_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Email, user.Name, store.NullString(passwordHash), store.NullString(picture),
		user.GlobalRole, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if store.IsUniqueViolation(err) {
		return nil, apperrors.Conflict("email already exists!", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func insertAccount(ctx context.Context, q store.Querier, userID string, provider Provider, providerID string, login *ExternalLogin) (*Account, error) {
	now := store.Now()
	account := &Account{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if login != nil {
		account.AccessToken = nullIfEmpty(login.AccessToken)
		account.RefreshToken = nullIfEmpty(login.RefreshToken)
		account.TokenExpiry = login.TokenExpiry
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, provider, provider_id, refresh_token, access_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.ID, account.UserID, string(account.Provider), account.ProviderID,
		store.NullString(account.RefreshToken), store.NullString(account.AccessToken),
		store.NullTime(account.TokenExpiry), account.CreatedAt, account.UpdatedAt)
	if store.IsUniqueViolation(err) {
		return nil, apperrors.Conflict("account already linked to another user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

func updateAccountTokens(ctx context.Context, q store.Querier, accountID string, in ExternalLogin) error {
	if in.AccessToken == "" && in.RefreshToken == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		UPDATE accounts
		SET access_token = COALESCE($1, access_token),
			refresh_token = COALESCE($2, refresh_token),
			token_expiry = COALESCE($3, token_expiry),
			updated_at = $4
		WHERE id = $5
	`, store.NullString(nullIfEmpty(in.AccessToken)), store.NullString(nullIfEmpty(in.RefreshToken)),
		store.NullTime(in.TokenExpiry), store.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}
	return nil
}

func findAccount(ctx context.Context, q store.Querier, providerID string) (*Account, error) {
	account := &Account{}
	var provider string
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_id, created_at, updated_at
		FROM accounts WHERE provider_id = $1
	`, providerID).Scan(&account.ID, &account.UserID, &provider, &account.ProviderID, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("Account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.Provider = Provider(provider)
	return account, nil
}

func getUser(ctx context.Context, q store.Querier, id string) (*User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func findUserByEmail(ctx context.Context, q store.Querier, email string) (*User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var passwordHash, picture, currentWorkspace sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.Name, &passwordHash, &picture, &user.GlobalRole,
		&user.IsActive, &currentWorkspace, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = store.StringPtr(passwordHash)
	user.ProfilePicture = store.StringPtr(picture)
	user.CurrentWorkspaceID = store.StringPtr(currentWorkspace)
	user.LastLogin = store.TimePtr(lastLogin)
	return user, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
