package security

import (
	"errors"
	"fmt"
	"os"
)

const (
	// PermConfigFile is for configuration files containing the webhook secret.
	// rw-r----- (0640)
	PermConfigFile os.FileMode = 0640

	// PermLogFile is for the service log file.
	// rw-r----- (0640)
	PermLogFile os.FileMode = 0640

	// PermDirectory is for the log and audit database directories.
	// rwxr-x--- (0750)
	PermDirectory os.FileMode = 0750

	// PermPrivateKey is for the GitHub App private key.
	// rw------- (0600)
	PermPrivateKey os.FileMode = 0600
)

// CreateSecureDir creates a directory with secure permissions.
// An existing directory is left as it is; only directories created here are
// tightened to perm.
func CreateSecureDir(path string, perm os.FileMode) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("failed to create secure directory: %w", err)
	}

	// MkdirAll is subject to umask
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set directory permissions: %w", err)
	}

	return nil
}

// OpenLogFile opens path for appending, creating it with PermLogFile
func OpenLogFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, PermLogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// IsWorldReadable checks if a file is readable by others.
func IsWorldReadable(perm os.FileMode) bool {
	return perm&0004 != 0
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// ValidateSecurePermissions validates that a sensitive file is neither
// world-readable nor world-writable.
func ValidateSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	perm := info.Mode().Perm()

	if IsWorldReadable(perm) {
		return fmt.Errorf("file %s is world-readable (%04o), which is insecure for sensitive data", path, perm)
	}

	if IsWorldWritable(perm) {
		return fmt.Errorf("file %s is world-writable (%04o), which is a serious security risk", path, perm)
	}

	return nil
}
