// Package classify provides the external title/pair classifier and its
// memoizing cache. The classifier is an opaque collaborator: the pipeline
// only depends on the Classifier interface, so tests inject stubs.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/change-correlator/internal/model"
)

// TitleKind selects which noise prompt a title is classified with.
type TitleKind string

const (
	KindChange   TitleKind = "change"
	KindIncident TitleKind = "incident"
)

// ErrUnrecognizedLabel is returned when the classifier answers with
// something outside the allowed label set. Callers treat this as fatal:
// guessing a label would silently corrupt the correlation output.
var ErrUnrecognizedLabel = errors.New("unrecognized classifier label")

// Classifier is the external classification collaborator.
type Classifier interface {
	// ClassifyTitle labels a title MEANINGFUL or NOISE.
	ClassifyTitle(ctx context.Context, kind TitleKind, title string) (model.Label, error)

	// ClassifyPair labels an (incident title, change title) pair
	// CAUSAL or NOT_CAUSAL.
	ClassifyPair(ctx context.Context, incidentTitle, changeTitle string) (model.Label, error)
}

// parseLabel validates a raw classifier reply against the allowed labels
// for the pass.
func parseLabel(raw string, allowed ...model.Label) (model.Label, error) {
	got := model.Label(strings.TrimSpace(raw))
	for _, l := range allowed {
		if got == l {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedLabel, raw)
}
