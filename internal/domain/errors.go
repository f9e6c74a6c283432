package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")

	ErrAppNotFound     = fmt.Errorf("app %w", ErrNotFound)
	ErrVersionNotFound = fmt.Errorf("version %w", ErrNotFound)
	ErrAppExists       = fmt.Errorf("app %w", ErrAlreadyExists)

	// 校验类错误
	ErrInvalidName      = fmt.Errorf("%w: invalid app name", ErrInvalidInput)
	ErrUnsafeArchive    = fmt.Errorf("%w: unsafe archive path", ErrInvalidInput)
	ErrUnclassifiable   = fmt.Errorf("%w: unclassifiable project", ErrInvalidInput)
	ErrWebhookNoSecret  = fmt.Errorf("%w: webhook secret not configured", ErrConflict)
	ErrWebhookSignature = fmt.Errorf("%w: invalid webhook signature", ErrUnauthorized)

	// 状态类错误
	ErrAlreadyRunning   = fmt.Errorf("%w: app already running", ErrConflict)
	ErrNotRunning       = fmt.Errorf("%w: app not running", ErrConflict)
	ErrAlreadyAtVersion = fmt.Errorf("%w: already at version", ErrConflict)
	ErrWorkDirGone      = fmt.Errorf("%w: working directory missing", ErrConflict)

	// 资源类错误
	ErrNoFreePort = errors.New("no free port available")
	ErrInstall    = errors.New("dependency install failed")
	ErrClone      = errors.New("git clone failed")
	ErrExtract    = errors.New("archive extraction failed")
)
