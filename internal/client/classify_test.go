package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		success bool
	}{
		{"bare ok", "OK", true},
		{"ok with padding", "  OK\n", true},
		{"ok inside text", "Account created: OK", true},
		{"unblock", "IP removed from all block lists", true},
		{"removal", "Removing files...\nAccount Removal Script Completed!", true},
		{"quota", "Error: quota exceeded", false},
		{"empty", "", false},
		{"whitespace", " \n\t", false},
		{"lowercase ok", "ok", false},
		// Inherited substring matching: failure text containing OK passes
		{"false positive", "Error: TOKEN invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.raw)
			assert.Equal(t, tt.success, result.Success)
			if tt.success {
				assert.Equal(t, models.ResultCodeOK, result.Code)
			} else {
				assert.Equal(t, models.ResultCodeError, result.Code)
			}
		})
	}
}

func TestClassify_TrimsMessage(t *testing.T) {
	result := Classify("\n  Error: username taken  \n")
	assert.Equal(t, "Error: username taken", result.Message)
	assert.False(t, result.Success)
}
