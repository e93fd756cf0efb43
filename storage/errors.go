package storage

import "errors"

var (
	ErrRedisURLNotProvided = errors.New("redis store URL not provided")
	ErrValueNotString      = errors.New("value must be of type string")
)
