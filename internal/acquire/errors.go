package acquire

import "errors"

var (
	// ErrInvalidSource means the reference is not an http(s) URL.
	ErrInvalidSource = errors.New("source must be an http or https url")

	// ErrAcquisitionInProgress means the acquirer already has a transfer
	// in flight. The acquirer is single-flight per instance.
	ErrAcquisitionInProgress = errors.New("another acquisition is already in flight")

	ErrAcquisitionFailed = errors.New("acquisition failed")
	ErrAssemblyFailed    = errors.New("assembly failed")
)
