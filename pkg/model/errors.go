package model

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidUserID = goerr.New("invalid user ID")
)
