package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCRFRange indicates min_crf is greater than max_crf or negative.
	ErrInvalidCRFRange = errors.New("invalid crf range")

	// ErrInvalidEncodedPercent indicates a non-positive max_encoded_percent.
	ErrInvalidEncodedPercent = errors.New("max encoded percent must be positive")

	// ErrInvalidSamples indicates a negative sample count or non-positive sample duration.
	ErrInvalidSamples = errors.New("invalid sample settings")

	// ErrInvalidEncoder indicates an unusable encoder token.
	ErrInvalidEncoder = errors.New("invalid encoder")

	// ErrInvalidScale indicates a vmaf.scale value other than auto, none or WxH.
	ErrInvalidScale = errors.New("invalid vmaf scale")

	// ErrInvalidLogging indicates an unknown log level or format.
	ErrInvalidLogging = errors.New("invalid logging configuration")
)
