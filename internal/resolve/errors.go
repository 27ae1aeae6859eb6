package resolve

import "errors"

var (
	// ErrUnrecognizedHost means the URL does not belong to a supported
	// video-hosting service.
	ErrUnrecognizedHost = errors.New("unrecognized remote source host")

	// ErrIdentifierExtraction means no video id could be pulled from the URL.
	ErrIdentifierExtraction = errors.New("failed to extract video identifier")

	// ErrMetadataFetch means the hosting service did not return metadata
	// for the video.
	ErrMetadataFetch = errors.New("failed to fetch video metadata")

	// ErrStreamExtraction means no usable audio-only stream was found.
	ErrStreamExtraction = errors.New("failed to extract audio stream")

	// ErrInvalidTimeRange means a clip window is malformed: negative start,
	// or end not after start.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrTimeRangeExceedsDuration means a clip window ends past the known
	// media duration.
	ErrTimeRangeExceedsDuration = errors.New("time range exceeds media duration")
)
