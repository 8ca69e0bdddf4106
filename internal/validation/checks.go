package validation

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/identity"
)

var hostNamePattern = regexp.MustCompile(`^([a-z0-9]|[a-z0-9][a-z0-9\-]{0,61}[a-z0-9])(\.([a-z0-9]|[a-z0-9][a-z0-9\-]{0,61}[a-z0-9]))+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// HostName reports whether s is a lowercase host name of at least two
// labels, each 1-63 letters, digits or inner hyphens, 255 characters at most.
func HostName(s string) bool {
	if len(s) > 255 {
		return false
	}
	return hostNamePattern.MatchString(s)
}

// IPAddress reports whether s is an IPv4 or IPv6 address
func IPAddress(s string) bool {
	return fieldValidator().Var(s, "required,ip") == nil
}

// Email reports whether s is an email address
func Email(s string) bool {
	return fieldValidator().Var(s, "required,email") == nil
}

// Password reports whether s is at least minLength long and mixes at least
// two of letters, digits and symbols.
func Password(s string, minLength int) bool {
	return len(s) >= minLength && identity.CharacterClasses(s) >= 2
}

// NameServerCount reports whether value holds at least two name servers
func NameServerCount(value any) bool {
	servers, ok := value.([]string)
	return ok && len(servers) >= 2
}

// NameServers reports whether every name server is a valid host name
func NameServers(value any) bool {
	servers, _ := value.([]string)
	for _, ns := range servers {
		if !HostName(ns) {
			return false
		}
	}
	return true
}

// HostNameRule adapts HostName to a custom rule check
func HostNameRule(value any) bool {
	s, ok := value.(string)
	return ok && HostName(s)
}
