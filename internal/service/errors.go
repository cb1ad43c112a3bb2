package service

import "errors"

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameStarted        = errors.New("game already started")
	ErrDuplicatePick      = errors.New("pick already submitted for this game and market")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)
