package kerrors

import "errors"

// Linux-style error codes returned (negated) across the syscall boundary.
const (
	EPERM        int64 = 1  // Operation not permitted
	ENOENT       int64 = 2  // No such file or directory
	EIO          int64 = 5  // I/O error (detected inconsistency)
	EBADF        int64 = 9  // Bad file descriptor
	ENOMEM       int64 = 12 // Out of memory
	EEXIST       int64 = 17 // File exists
	EXDEV        int64 = 18 // Cross-device link
	ENOTDIR      int64 = 20 // Not a directory
	EISDIR       int64 = 21 // Is a directory
	EINVAL       int64 = 22 // Invalid argument
	EMFILE       int64 = 24 // Too many open files
	EPIPE        int64 = 32 // Broken pipe
	ENAMETOOLONG int64 = 36 // Name too long
	ENOTEMPTY    int64 = 39 // Directory not empty
	ELOOP        int64 = 40 // Too many levels of symbolic links
	ENODATA      int64 = 61 // No data available
	ENOLINK      int64 = 67 // Link has been severed

	ENOMEM_NEG int64 = -ENOMEM
	EINVAL_NEG int64 = -EINVAL
)

// Error is a kernel error carrying its syscall-boundary code.
type Error struct {
	Code    int64
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) GetCode() int64 {
	return e.Code
}

var (
	ErrBadDescriptor   = &Error{Code: EBADF, Message: "bad file descriptor"}
	ErrNoFreeSlot      = &Error{Code: EMFILE, Message: "too many open files"}
	ErrNoSuchPath      = &Error{Code: ENOENT, Message: "no such file or directory"}
	ErrNoSuchParent    = &Error{Code: ENOENT, Message: "no such parent directory"}
	ErrExists          = &Error{Code: EEXIST, Message: "file exists"}
	ErrNotEmpty        = &Error{Code: ENOTEMPTY, Message: "directory not empty"}
	ErrCrossDevice     = &Error{Code: EXDEV, Message: "cross-device link"}
	ErrNotASymlink     = &Error{Code: EINVAL, Message: "not a symbolic link"}
	ErrBrokenLink      = &Error{Code: ENOLINK, Message: "broken symbolic link"}
	ErrChainTooLong    = &Error{Code: ELOOP, Message: "too many levels of symbolic links"}
	ErrTooLong         = &Error{Code: ENAMETOOLONG, Message: "name too long"}
	ErrAllocation      = &Error{Code: ENOMEM, Message: "out of resources"}
	ErrInvalidArgument = &Error{Code: EINVAL, Message: "invalid argument"}
	ErrIsDirectory     = &Error{Code: EISDIR, Message: "is a directory"}
	ErrNotDirectory    = &Error{Code: ENOTDIR, Message: "not a directory"}
	ErrBrokenPipe      = &Error{Code: EPIPE, Message: "broken pipe"}
	ErrNoData          = &Error{Code: ENODATA, Message: "no data available"}
	ErrInternal        = &Error{Code: EIO, Message: "filesystem inconsistency detected"}
)

// CodeOf extracts the errno of a failed operation. Unrecognized errors map
// to ENOMEM, matching the default the boundary has always reported.
func CodeOf(err error) int64 {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ENOMEM
}
