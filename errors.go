package colorconvert

import "errors"

// Error taxonomy. Every one of these is fatal to the demo binary: it logs
// the error and exits before any frame is presented.
var (
	// ErrIncompleteData is returned when the plane source is shorter than
	// one full 4:2:0 frame.
	ErrIncompleteData = errors.New("colorconvert: incomplete plane data")

	// ErrImageLoad is returned when the overlay image is missing or cannot
	// be decoded.
	ErrImageLoad = errors.New("colorconvert: overlay image load failed")

	// ErrImageTooSmall is returned (together with ErrImageLoad) when the
	// overlay is too small for random sub-region sampling.
	ErrImageTooSmall = errors.New("colorconvert: overlay image too small for region sampling")

	// ErrCompile is returned when the conversion program fails to compile.
	ErrCompile = errors.New("colorconvert: conversion program compile failed")

	// ErrLink is returned when the compiled conversion program cannot be
	// turned into a render pipeline.
	ErrLink = errors.New("colorconvert: conversion program link failed")

	// ErrExtensionMissing is returned when a required platform capability
	// (GPU backend, adapter) is absent.
	ErrExtensionMissing = errors.New("colorconvert: required platform capability missing")

	// ErrDeviceResource is returned when a texture, buffer, sampler or
	// context cannot be created.
	ErrDeviceResource = errors.New("colorconvert: device resource error")

	// ErrUnknownParameter is returned when binding a name the conversion
	// program does not declare, or declares with a different kind or slot.
	ErrUnknownParameter = errors.New("colorconvert: unknown program parameter")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("colorconvert: invalid configuration")
)
