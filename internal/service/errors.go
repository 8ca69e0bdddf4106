package service

import (
	"errors"
	"fmt"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/validation"
)

// ErrorKind classifies provisioning failures
type ErrorKind string

const (
	// KindValidation is a local field rule violation, raised before any remote call
	KindValidation ErrorKind = "validation"
	// KindTransport means the panel did not answer
	KindTransport ErrorKind = "transport"
	// KindRemoteRejection means the panel answered with a failure text
	KindRemoteRejection ErrorKind = "remote_rejection"
	// KindGenerationExhausted means no free username could be generated
	KindGenerationExhausted ErrorKind = "generation_exhausted"
	// KindMissingServer means the service's server row could not be resolved
	KindMissingServer ErrorKind = "missing_server"
)

// User facing messages
const (
	msgAPIInternal        = "An internal error occurred, or the server did not respond to the request."
	msgModuleRowMissing   = "A module row is unavailable."
	msgDomainFormat       = "Please enter a valid domain name, e.g. domain.com."
	msgUsernameFormat     = "The username may contain only letters and numbers and may not start with a number."
	msgUsernameLength     = "The username must be between 1 and 16 characters in length."
	msgUsernameGenerate   = "A unique username could not be generated for this domain, please enter one."
	msgPasswordValid      = "Password must be at least 8 characters in length and mix letters, numbers or symbols."
	msgPasswordRequired   = "Please enter a password."
	msgIPAddressValid     = "Please enter a valid IP address."
	msgServerNameValid    = "Please enter a server label."
	msgHostNameValid      = "The hostname appears to be invalid."
	msgAPIKeyValid        = "Please enter an API key."
	msgAPIKeyConnection   = "A connection to the server could not be established. Please check to ensure that the hostname and API key are correct."
	msgAccountLimitValid  = "Account limit must be left blank (for unlimited accounts) or set to some integer value."
	msgNameServersCount   = "You must define at least 2 name servers."
	msgNameServersValid   = "One or more of the name servers entered are invalid."
	msgPackageEmpty       = "Please enter a package ID."
	msgPackageInodeValid  = "Please enter a valid inode limit."
	msgPackageNofileValid = "Please enter a valid number of files limit."
	msgPackageNprocValid  = "Please enter a valid number of processes limit."
)

// Error is a classified provisioning failure carrying the field errors to
// show the user
type Error struct {
	Kind   ErrorKind
	Fields validation.Errors
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Fields.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provisioning error
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func validationError(errs validation.Errors) *Error {
	return &Error{Kind: KindValidation, Fields: errs}
}

func fieldError(kind ErrorKind, field, rule, message string, cause error) *Error {
	errs := validation.Errors{}
	errs.Add(field, rule, message)
	return &Error{Kind: kind, Fields: errs, Err: cause}
}

// resultError maps a classified panel result onto an error. An empty
// message is what a transport failure classifies to.
func resultError(result models.APIResult) error {
	if result.Success {
		return nil
	}
	if result.Message == "" {
		return fieldError(KindTransport, "api", "internal", msgAPIInternal, nil)
	}
	return fieldError(KindRemoteRejection, "api", "result", result.Message, nil)
}
