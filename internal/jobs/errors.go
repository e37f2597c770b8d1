package jobs

import "errors"

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyExists = errors.New("a job with this name already exists")
	ErrJobNotSubmitted  = errors.New("job has not been submitted to the scheduler")
)
