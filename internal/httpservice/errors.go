package httpservice

import (
	"errors"

	"github.com/sirosfoundation/go-httpservice/internal/alias"
)

// Registration errors
var (
	ErrInvalidAlias      = alias.ErrInvalidAlias
	ErrDuplicatePath     = errors.New("alias already in use")
	ErrNotRegistered     = errors.New("alias not registered")
	ErrWrongContextKind  = errors.New("context not managed by this registry")
	ErrHandlerInitFailed = errors.New("handler initialization failed")
	ErrNamespace         = errors.New("namespace error")
)
