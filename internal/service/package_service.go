package service

import (
	"strings"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/validation"
)

// ValidatePackage checks the panel limits of a billing package and returns
// them as meta fields
func ValidatePackage(meta models.PackageMeta) ([]models.MetaField, error) {
	digits := `^[0-9]+$`
	rules := []validation.FieldRules{
		{Field: "meta[package]", Rules: []validation.Rule{
			validation.Required("empty", msgPackageEmpty),
		}},
		{Field: "meta[inode]", Rules: []validation.Rule{
			validation.Pattern("valid", digits, msgPackageInodeValid),
		}},
		{Field: "meta[nofile]", Rules: []validation.Rule{
			validation.Pattern("valid", digits, msgPackageNofileValid),
		}},
		{Field: "meta[nproc]", Rules: []validation.Rule{
			validation.Pattern("valid", digits, msgPackageNprocValid),
		}},
	}

	meta = models.PackageMeta{
		Package: strings.TrimSpace(meta.Package),
		Inode:   strings.TrimSpace(meta.Inode),
		Nofile:  strings.TrimSpace(meta.Nofile),
		Nproc:   strings.TrimSpace(meta.Nproc),
	}

	errs := validation.Validate(rules, validation.Input{
		"meta[package]": meta.Package,
		"meta[inode]":   meta.Inode,
		"meta[nofile]":  meta.Nofile,
		"meta[nproc]":   meta.Nproc,
	})
	if !errs.Empty() {
		return nil, validationError(errs)
	}

	return []models.MetaField{
		{Key: "package", Value: meta.Package},
		{Key: "inode", Value: meta.Inode},
		{Key: "nofile", Value: meta.Nofile},
		{Key: "nproc", Value: meta.Nproc},
	}, nil
}
