package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	return ValidateDimensions(mat.Cols(), mat.Rows(), operation)
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

// ValidateMatType rejects anything but the single-channel types the
// segmentation stages work with.
func ValidateMatType(mat *Mat, operation string, allowed ...gocv.MatType) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}
	t := mat.Type()
	for _, a := range allowed {
		if t == a {
			return nil
		}
	}
	if tag := mat.Tag(); tag != "" {
		return fmt.Errorf("unsupported MatType %d from %s for operation: %s", int(t), tag, operation)
	}
	return fmt.Errorf("unsupported MatType %d for operation: %s", int(t), operation)
}
