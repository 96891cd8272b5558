package service

import (
	"context"
	"strings"

	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/database/model"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/crypto"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	usernameMinLen = 2
	usernameMaxLen = 20
	emailMaxLen    = 120
)

var validate = validator.New()

// UserService is the account store.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// IsEmailValid checks only the syntax of an address; see IsEmailTaken for
// the registration check.
func IsEmailValid(email string) bool {
	return len(email) <= emailMaxLen && validate.Var(email, "required,email") == nil
}

func validateUsername(username string) error {
	if n := len([]rune(username)); n < usernameMinLen || n > usernameMaxLen {
		return &ValidationError{Field: "username", Msg: "must be between 2 and 20 characters"}
	}
	return nil
}

func validateEmail(email string) error {
	if !IsEmailValid(email) {
		return &ValidationError{Field: "email", Msg: "invalid email address"}
	}
	return nil
}

func (s *UserService) isTaken(ctx context.Context, column, value string, excludeID int) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(model.User{}).Where(column+" = ?", value)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsEmailTaken reports whether an account already uses email.
func (s *UserService) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	return s.isTaken(ctx, "email", email, 0)
}

// IsUsernameTaken reports whether an account already uses username.
func (s *UserService) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.isTaken(ctx, "username", username, 0)
}

func (s *UserService) checkUnique(ctx context.Context, username, email string, excludeID int) error {
	taken, err := s.isTaken(ctx, "username", username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return &DuplicateFieldError{Field: "username"}
	}
	taken, err = s.isTaken(ctx, "email", email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return &DuplicateFieldError{Field: "email"}
	}
	return nil
}

// duplicateFromErr maps a unique index violation that slipped past
// checkUnique (a concurrent insert) onto the offending field.
func duplicateFromErr(err error) error {
	if strings.Contains(err.Error(), "email") {
		return &DuplicateFieldError{Field: "email"}
	}
	return &DuplicateFieldError{Field: "username"}
}

// CreateUser registers a new account with a bcrypt hash of password.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Msg: "this field is required"}
	}
	if err := s.checkUnique(ctx, username, email, 0); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username: username,
		Email:    email,
		Password: hash,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, duplicateFromErr(err)
		}
		return nil, err
	}
	logger.Infof("user %q registered", username)
	return user, nil
}

// VerifyCredentials returns the account for email when password matches
// its hash, nil otherwise.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) *model.User {
	user := &model.User{}
	err := s.db.WithContext(ctx).Model(model.User{}).
		Where("email = ?", strings.TrimSpace(email)).
		First(user).
		Error
	if database.IsNotFound(err) {
		return nil
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil
	}
	if !crypto.CheckPasswordHash(user.Password, password) {
		return nil
	}
	return user
}

func (s *UserService) GetUser(ctx context.Context, id int) (*model.User, error) {
	user := &model.User{}
	err := s.db.WithContext(ctx).Model(model.User{}).Where("id = ?", id).First(user).Error
	if database.IsNotFound(err) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes the username and email of user. On success user is
// updated in place.
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, newUsername, newEmail string) error {
	newUsername = strings.TrimSpace(newUsername)
	newEmail = strings.TrimSpace(newEmail)
	if err := validateUsername(newUsername); err != nil {
		return err
	}
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	if err := s.checkUnique(ctx, newUsername, newEmail, user.Id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Model(model.User{}).
		Where("id = ?", user.Id).
		Updates(map[string]any{"username": newUsername, "email": newEmail}).
		Error
	if err != nil {
		if database.IsUniqueViolation(err) {
			return duplicateFromErr(err)
		}
		return err
	}
	user.Username = newUsername
	user.Email = newEmail
	return nil
}

// ChangePassword replaces the password of user after checking current
// against the stored hash. The stored hash is untouched on any failure.
func (s *UserService) ChangePassword(ctx context.Context, user *model.User, current, newPassword string) error {
	stored, err := s.GetUser(ctx, user.Id)
	if err != nil {
		return err
	}
	if !crypto.CheckPasswordHash(stored.Password, current) {
		return ErrAuth
	}
	if newPassword == "" {
		return &ValidationError{Field: "new_password", Msg: "this field is required"}
	}

	hash, err := crypto.HashPasswordAsBcrypt(newPassword)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(model.User{}).
		Where("id = ?", user.Id).
		Update("password", hash).
		Error
	if err != nil {
		return err
	}
	user.Password = hash
	logger.Infof("user %q changed password", stored.Username)
	return nil
}
