package document

import "errors"

var (
	ErrEngineNotInitialized = errors.New("engine not initialized")
	ErrObjectNotFound       = errors.New("object not found")
	ErrZoneNotFound         = errors.New("zone not found")
	ErrImageLoad            = errors.New("image load failed")
	ErrQRGeneration         = errors.New("qr generation failed")
	ErrQREncoding           = errors.New("qr encoding failed")
	ErrLoadAbandoned        = errors.New("object removed before load completed")
	ErrNoObjectsToGroup     = errors.New("no objects to group")
	ErrInvalidPatch         = errors.New("patch does not match object type")
	ErrInvalidObject        = errors.New("invalid object configuration")
	ErrInvalidScene         = errors.New("invalid scene")
	ErrInvalidExportArea    = errors.New("invalid export area")

	ErrContentTypeNotAllowed   = errors.New("content type not allowed in zone")
	ErrZoneCapacityExceeded    = errors.New("zone capacity exceeded")
	ErrSizeConstraintViolated  = errors.New("size constraint violated")
	ErrScaleConstraintViolated = errors.New("scale constraint violated")
	ErrRotationNotAllowed      = errors.New("rotation not allowed in zone")

	ErrTextTooLong           = errors.New("text too long")
	ErrFontNotAllowed        = errors.New("font not allowed")
	ErrFontSizeOutOfRange    = errors.New("font size out of range")
	ErrColorNotAllowed       = errors.New("color not allowed")
	ErrImageTooLarge         = errors.New("image file too large")
	ErrImageFormatNotAllowed = errors.New("image format not allowed")
	ErrImageDimensions       = errors.New("image dimensions out of range")
	ErrZoneEmpty             = errors.New("required zone has too few elements")
)
