package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxLinkedBanks = 5

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,20}$`)

// BankPicker chooses the external banks linked to a new user.
type BankPicker func() []string

// RandomBanks links between zero and five distinct external banks.
func RandomBanks() []string {
	banks := directory.ExternalBanks()
	n := rand.IntN(maxLinkedBanks + 1)
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(banks))[:n] {
		out = append(out, banks[i].Code)
	}
	return out
}

// AuthService registers and authenticates users and administers their
// status. Token signing stays at the HTTP edge.
type AuthService struct {
	users      UserStore
	lockout    int
	bcryptCost int
	pickBanks  BankPicker
}

func NewAuthService(users UserStore, lockoutThreshold int) *AuthService {
	return &AuthService{
		users:      users,
		lockout:    lockoutThreshold,
		bcryptCost: bcrypt.DefaultCost,
		pickBanks:  RandomBanks,
	}
}

// WithBcryptCost lowers hashing cost, for tests.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

func (s *AuthService) WithBankPicker(pick BankPicker) *AuthService {
	s.pickBanks = pick
	return s
}

type Registration struct {
	Login    string
	Password string
	Phone    string
}

func (s *AuthService) Register(ctx context.Context, reg Registration) (domain.User, error) {
	login := strings.TrimSpace(reg.Login)
	if !loginPattern.MatchString(login) {
		return domain.User{}, domain.ErrInvalidLogin
	}
	if err := ValidatePassword(login, reg.Password); err != nil {
		return domain.User{}, err
	}
	var phone string
	if strings.TrimSpace(reg.Phone) != "" {
		normalized, err := directory.NormalizePhone(reg.Phone)
		if err != nil {
			return domain.User{}, err
		}
		phone = normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Login:        login,
		PasswordHash: string(hash),
		Role:         domain.RoleClient,
		Status:       domain.UserStatusActive,
		Phone:        phone,
	})
	if err != nil {
		return domain.User{}, err
	}
	if banks := s.pickBanks(); len(banks) > 0 {
		if err := s.users.SetUserBanks(ctx, user.ID, banks); err != nil {
			return domain.User{}, fmt.Errorf("link banks: %w", err)
		}
	}
	zap.L().Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// ValidatePassword enforces 8 to 30 non-space characters with a lower case
// letter, an upper case letter, a digit and a symbol, not equal to the login.
func ValidatePassword(login, password string) error {
	if password == login {
		return domain.ErrPasswordEqualsLogin
	}
	if strings.ContainsFunc(password, unicode.IsSpace) {
		return domain.ErrPasswordContainsSpace
	}
	n := len([]rune(password))
	if n < 8 || n > 30 {
		return domain.ErrWeakPassword
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return domain.ErrWeakPassword
	}
	return nil
}

// Authenticate checks credentials. Consecutive failures past the lockout
// threshold block the user.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (domain.User, error) {
	user, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if user.Status == domain.UserStatusBlocked {
		return domain.User{}, domain.ErrUserBlocked
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		updated, err := s.users.RecordFailedLogin(ctx, user.ID, s.lockout)
		if err != nil {
			return domain.User{}, err
		}
		if updated.Status == domain.UserStatusBlocked {
			zap.L().Warn("user blocked after failed logins", zap.Int64("user_id", user.ID))
		}
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Actor reloads the caller so a block takes effect on the next request.
func (s *AuthService) Actor(ctx context.Context, userID int64) (domain.Actor, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Actor{}, domain.ErrInvalidToken
	}
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.ActorFromUser(user), nil
}

// EnsureAdmin creates the default administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		zap.L().Warn("default admin not configured")
		return nil
	}
	existing, err := s.users.GetUserByLogin(ctx, login)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			zap.L().Warn("default admin login is taken by a client", zap.String("login", login))
		}
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("load admin: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.CreateUser(ctx, domain.User{
		Login:        login,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
	}); err != nil && !errors.Is(err, domain.ErrLoginTaken) {
		return fmt.Errorf("create admin: %w", err)
	}
	zap.L().Info("default admin ensured", zap.String("login", login))
	return nil
}

// SetBlocked blocks or unblocks a user. Admins cannot block themselves.
func (s *AuthService) SetBlocked(ctx context.Context, admin domain.Actor, userID int64, blocked bool) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	if userID == admin.UserID {
		return domain.ErrForbidden
	}
	status := domain.UserStatusActive
	if blocked {
		status = domain.UserStatusBlocked
	}
	if err := s.users.SetUserStatus(ctx, userID, status); err != nil {
		return err
	}
	if !blocked {
		if err := s.users.ResetFailedLogins(ctx, userID); err != nil {
			return err
		}
	}
	zap.L().Info("user status changed", zap.Int64("user_id", userID), zap.String("status", string(status)), zap.Int64("admin_id", admin.UserID))
	return nil
}

func (s *AuthService) UserBanks(ctx context.Context, admin domain.Actor, userID int64) ([]string, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	return s.users.ListUserBanks(ctx, userID)
}

// SetUserBanks replaces a user's linked external banks.
func (s *AuthService) SetUserBanks(ctx context.Context, admin domain.Actor, userID int64, codes []string) ([]string, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if err := directory.ValidateExternalBanks(codes); err != nil {
		return nil, err
	}
	unique := slices.Clone(codes)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	if err := s.users.SetUserBanks(ctx, userID, unique); err != nil {
		return nil, err
	}
	return unique, nil
}

func requireAdmin(actor domain.Actor) error {
	if err := actor.CheckActive(); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
