package helper

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/ppiankov/fanguard/internal/model"
)

// failure converts an executor error into a structured result.
func failure(cmd model.Command, err error) model.WriteResult {
	if errors.Is(err, os.ErrPermission) {
		return model.WriteResult{
			Command:   cmd,
			ErrorCode: model.WriteFailedBackend,
			Detail:    fmt.Sprintf("permission error: %v", err),
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) || errors.Is(err, os.ErrNotExist) {
		return model.WriteResult{
			Command:   cmd,
			ErrorCode: MapErrno(errno, err),
			Detail:    fmt.Sprintf("os error: %v", err),
		}
	}

	return model.WriteResult{
		Command:   cmd,
		ErrorCode: model.WriteFailedBackend,
		Detail:    fmt.Sprintf("unexpected helper error: %v", err),
	}
}

// MapErrno classifies an OS error. A missing device or file maps to
// VALIDATION_FAILED; permission and all other errors map to WRITE_FAILED_BACKEND.
func MapErrno(errno syscall.Errno, err error) model.Reason {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return model.WriteFailedBackend
	case syscall.ENODEV, syscall.ENOENT:
		return model.ValidationFailed
	}
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return model.ValidationFailed
	}
	return model.WriteFailedBackend
}
