package driver

import "context"

// GenericDriver answers every prompt with the prompt itself. It needs no
// network access and is the default when no provider is configured.
type GenericDriver struct{}

// NewGenericDriver creates a new GenericDriver.
func NewGenericDriver() *GenericDriver {
	return &GenericDriver{}
}

// Name returns the name of the driver.
func (d *GenericDriver) Name() string {
	return "generic"
}

// Generate returns prompt unchanged.
func (d *GenericDriver) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt, nil
}
