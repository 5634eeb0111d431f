package models

import "errors"

// Common errors for store and job operations.
var (
	// Job errors
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotCancelable = errors.New("job is not cancelable")
	ErrJobConflict      = errors.New("another job is already active")

	// Firewall errors
	ErrFirewallNotFound    = errors.New("firewall not found")
	ErrDisplayNameRequired = errors.New("display name is required")

	// Endpoint errors
	ErrEndpointNotFound = errors.New("endpoint not found")

	// Cluster errors
	ErrClusterNotFound  = errors.New("ha cluster not found")
	ErrDuplicateCluster = errors.New("ha cluster already exists")

	// Classification errors
	ErrClassificationNotFound = errors.New("classification not found")

	// Setting errors
	ErrSettingNotFound = errors.New("setting not found")

	// Maintenance errors
	ErrImportInProgress = errors.New("import in progress, try again later")

	// Upload errors. ErrEmptyFile's text is shown verbatim in job status.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	ErrEmptyFile      = errors.New("Empty file")
)
