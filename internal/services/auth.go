package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/models"
	"github.com/copyhere/server/internal/utils"
	"github.com/copyhere/server/pkg/logger"
	"gorm.io/gorm"
)

// AuthService owns the token lifecycle: registration, login, rotate-on-use
// refresh and idempotent revocation. Every decision is re-read from the
// database on each call; the service itself holds no mutable state.
type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg *config.LDAPConfig) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             *models.User `json:"user,omitempty"`
}

// Register creates a local user with a bcrypt-hashed password.
func (s *AuthService) Register(req *RegisterRequest) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    req.Email,
		Password: hash,
		AuthType: "local",
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// Login verifies credentials and issues a fresh access/refresh pair.
// Unknown email and wrong password fail identically.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*TokenPair, error) {
	var user *models.User
	var err error

	if req.AuthType == "" {
		req.AuthType = "local"
	}

	switch req.AuthType {
	case "local":
		user, err = s.localAuth(req.Email, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(user, clientIP, userAgent, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(user)

	pair.User = user
	return pair, nil
}

// Refresh exchanges an access/refresh pair for a new one. The access
// token may be expired but must carry a valid signature; the refresh
// token must belong to the same subject and still be active. Consumption
// is a compare-and-revoke so that two concurrent calls with the same
// refresh token can never both succeed.
func (s *AuthService) Refresh(accessToken, refreshToken, clientIP, userAgent string) (*TokenPair, error) {
	claims, err := utils.ParseTokenAllowExpired(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	hash := hashRefreshToken(refreshToken)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if stored.UserID != claims.UserID || !stored.IsActive() {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	pair, err := s.issueTokens(&user, clientIP, userAgent, &stored)
	if err != nil {
		return nil, err
	}

	pair.User = &user
	return pair, nil
}

// Revoke marks a refresh token revoked. Returns false for unknown,
// expired or already-revoked tokens; the caller cannot distinguish
// those cases. Other tokens of the same user are untouched.
func (s *AuthService) Revoke(refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}

	hash := hashRefreshToken(refreshToken)
	res := s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, time.Now()).
		Update("revoked_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// GetUserByID retrieves a user by ID.
func (s *AuthService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

// issueTokens mints an access token and persists a new refresh token row.
// When consumed is non-nil the new row replaces it: the old row is
// revoked in the same transaction, guarded by a compare-and-set on
// revoked_at so a concurrent refresh of the same token loses cleanly.
func (s *AuthService) issueTokens(user *models.User, clientIP, userAgent string, consumed *models.RefreshToken) (*TokenPair, error) {
	accessToken, err := utils.GenerateToken(user.ID, user.Email, s.jwtConfig.AccessExpireMinutes)
	if err != nil {
		return nil, err
	}

	refreshValue, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(s.jwtConfig.RefreshExpireDays) * 24 * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		if consumed == nil {
			return nil
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL AND expires_at > ?", consumed.ID, now).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: someone else consumed this token between
			// our read and the update. The transaction rolls back the
			// row created above.
			return ErrInvalidToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(time.Duration(s.jwtConfig.AccessExpireMinutes) * time.Minute),
		RefreshToken:     refreshValue,
		RefreshExpiresAt: newRefresh.ExpiresAt,
	}, nil
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", email, "local").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func (s *AuthService) ldapAuth(identifier, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(identifier, password)
	if err != nil {
		logger.Debug().Err(err).Msg("ldap authentication failed")
		return nil, ErrInvalidCredentials
	}

	email := ldapUser.Email
	if email == "" {
		email = identifier
	}

	var user models.User
	err = s.db.Where("email = ? AND auth_type = ?", email, "ldap").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Email:    email,
			AuthType: "ldap",
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &user, nil
}

// generateRefreshToken returns an opaque random token and its SHA-256
// hash. Only the hash is stored.
func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashRefreshToken(token)
	return token, tokenHash, nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
