package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Build stage errors

// CompileFailed reports a shader that the backend compiler rejected.
// The compiler log is carried as context so callers can surface it verbatim.
func CompileFailed(name, log string) *BuildError {
	return New(CategoryCompile, SeverityError, "failed to compile shader '"+name+"'").
		WithContext("log", log)
}

// LinkFailed reports a program link the backend rejected.
func LinkFailed(log string) *BuildError {
	return New(CategoryLink, SeverityError, "failed to link program").
		WithContext("log", log)
}

// ReflectionUnsupported reports that the platform cannot produce
// independently linkable units. Always a warning, never fatal: callers
// degrade to empty reflection results.
func ReflectionUnsupported() *BuildError {
	return New(CategoryReflection, SeverityWarning,
		"shader resource queries are not available when separable programs are unsupported")
}

// Precondition reports a caller programming error, such as querying
// reflection before the build finished.
func Precondition(what string) *BuildError {
	return New(CategoryValidation, SeverityError, what)
}

// Backend errors

func BackendError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryBackend, SeverityError, "backend operation failed").
		WithContext("operation", operation)
}

// Storage errors

func StorageError(operation string, cause error) *BuildError {
	return Wrap(cause, CategoryStorage, SeverityError, "history store operation failed").
		WithContext("operation", operation)
}
