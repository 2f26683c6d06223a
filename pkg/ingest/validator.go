package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cohortica-ai/platform/pkg/common/models"
)

var (
	errInvalidSource = errors.New("invalid source")
	errEmptyBatch    = errors.New("empty event batch")
	errUnknownTag    = errors.New("unknown source tag")
	errBadEvent      = errors.New("malformed event")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator gates incoming chart-event batches: known origin, known source
// tags, well-formed rows. Tags not declared by any registered feature are
// rejected at the door rather than discovered mid-extraction.
type Validator struct {
	allowedSources map[string]struct{}
	knownTags      map[string]struct{}
	maxBatch       int
}

func NewValidator(sources, tags []string, maxBatch int) *Validator {
	vs := make(map[string]struct{})
	for _, src := range sources {
		if trimmed := strings.TrimSpace(strings.ToLower(src)); trimmed != "" {
			vs[trimmed] = struct{}{}
		}
	}

	vt := make(map[string]struct{})
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			vt[trimmed] = struct{}{}
		}
	}

	return &Validator{allowedSources: vs, knownTags: vt, maxBatch: maxBatch}
}

func (v *Validator) Validate(req models.IngestEventRequest) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}

	source := strings.TrimSpace(strings.ToLower(req.Source))
	if source == "" {
		return ValidationError{reason: fmt.Errorf("source required: %w", errInvalidSource)}
	}
	if len(v.allowedSources) > 0 {
		if _, ok := v.allowedSources[source]; !ok {
			return ValidationError{reason: fmt.Errorf("source '%s' not allowed: %w", source, errInvalidSource)}
		}
	}

	if len(req.Events) == 0 {
		return ValidationError{reason: errEmptyBatch}
	}
	if v.maxBatch > 0 && len(req.Events) > v.maxBatch {
		return ValidationError{reason: fmt.Errorf("batch of %d exceeds limit %d", len(req.Events), v.maxBatch)}
	}

	for i, ev := range req.Events {
		if ev.StayID == 0 || ev.SubjectID == 0 {
			return ValidationError{reason: fmt.Errorf("event %d missing stay or subject id: %w", i, errBadEvent)}
		}
		if ev.ChartedAt.IsZero() {
			return ValidationError{reason: fmt.Errorf("event %d missing timestamp: %w", i, errBadEvent)}
		}
		tag := strings.TrimSpace(ev.SourceTag)
		if tag == "" {
			return ValidationError{reason: fmt.Errorf("event %d missing source tag: %w", i, errBadEvent)}
		}
		if len(v.knownTags) > 0 {
			if _, ok := v.knownTags[tag]; !ok {
				return ValidationError{reason: fmt.Errorf("event %d tag '%s': %w", i, tag, errUnknownTag)}
			}
		}
	}

	return nil
}
