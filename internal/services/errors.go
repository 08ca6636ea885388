package services

import "errors"

var (
	ErrInvalidDomainName  = errors.New("invalid domain name")
	ErrDomainNameTaken    = errors.New("domain name is already used within this tenant")
	ErrQuotaExceeded      = errors.New("domain quota reached for plan")
	ErrDomainNotFound     = errors.New("domain not found")
	ErrGraphAlreadyOnline = errors.New("graph is already online; retry not required")
)
