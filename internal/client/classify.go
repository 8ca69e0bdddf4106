package client

import (
	"strings"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
)

// successPhrases are the texts CentOS WebPanel prints when a call worked.
// The panel answers in human readable text rather than JSON or XML, so the
// result is decided by substring match. Any failure text containing "OK"
// is misread as success.
var successPhrases = []string{
	"OK",
	"IP removed from all block lists",
	"Account Removal Script Completed!",
}

// Classify turns a raw panel response into an APIResult
func Classify(raw string) models.APIResult {
	message := strings.TrimSpace(raw)

	success := false
	for _, phrase := range successPhrases {
		if strings.Contains(message, phrase) {
			success = true
			break
		}
	}

	code := models.ResultCodeError
	if success {
		code = models.ResultCodeOK
	}

	return models.APIResult{
		Success: success,
		Message: message,
		Code:    code,
	}
}
