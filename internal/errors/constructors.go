package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *AssetError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

// ConfigurationError reports a required field (such as an output path) that
// could not be resolved by any rule. The export fails eagerly.
func ConfigurationError(message string) *AssetError {
	return New(CategoryConfig, SeverityFatal, message)
}

func ValidationFailed(field, reason string) *AssetError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Export engine errors

// UnknownKindError reports a content type with no applicable grouping or
// rendering rule.
func UnknownKindError(message string) *AssetError {
	return New(CategoryUnknownKind, SeverityError, message)
}

// SourceMissingError reports backing content that disappeared between
// inclusion and build.
func SourceMissingError(path string, cause error) *AssetError {
	return Wrap(cause, CategorySourceMissing, SeverityError, "source content missing").
		WithContext("path", path)
}

// FilterContractViolation reports a filter that declared acceptance but
// produced no usable output on build.
func FilterContractViolation(signature, message string) *AssetError {
	return New(CategoryFilterContract, SeverityError, message).
		WithContext("signature", signature)
}

// Filesystem errors

func WorkspaceError(operation string, cause error) *AssetError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

func WriteError(path string, cause error) *AssetError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "write failed").
		WithContext("path", path)
}

// Runtime errors

func DaemonError(message string) *AssetError {
	return New(CategoryDaemon, SeverityError, message)
}

func InternalError(message string, cause error) *AssetError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
