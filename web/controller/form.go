package controller

import "strings"

// RegisterForm is posted by the sign-up page.
type RegisterForm struct {
	Username        string `form:"username" binding:"required,min=2,max=20"`
	Email           string `form:"email" binding:"required,email,max=120"`
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

// LoginForm is posted by the login page.
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	// Remember is a checkbox, so "on", "y" and "true" all count.
	Remember string `form:"remember"`
}

func (f *LoginForm) remember() bool {
	switch strings.ToLower(strings.TrimSpace(f.Remember)) {
	case "", "0", "false", "off", "n", "no":
		return false
	}
	return true
}

// ProfileForm updates the account identity.
type ProfileForm struct {
	Username string `form:"username" binding:"required,min=2,max=20"`
	Email    string `form:"email" binding:"required,email,max=120"`
}

// PasswordForm changes the account password.
type PasswordForm struct {
	CurrentPassword string `form:"current_password" binding:"required"`
	NewPassword     string `form:"new_password" binding:"required"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// UploadForm carries the chart choice next to the uploaded file.
type UploadForm struct {
	GraphType string `form:"graph_type" binding:"required"`
	XAxis     string `form:"x_axis"`
	YAxis     string `form:"y_axis"`
}
