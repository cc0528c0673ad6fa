// Package source resolves user-supplied source locations into locally staged
// files and the engine function that ingests them.
package source

import (
	"regexp"
	"strings"

	"github.com/duckmesh/duckframe/internal/apperrors"
)

// DefaultRelation is the relation name used when the caller names none.
const DefaultRelation = "source"

var relationPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Descriptor is the immutable description of one source to load.
type Descriptor struct {
	Location    string
	ContentType ContentType
	Relation    string
}

// NewDescriptor validates caller input. An empty declared type is inferred
// from the location; an empty relation becomes DefaultRelation.
func NewDescriptor(location, declaredType, relation string) (Descriptor, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Descriptor{}, apperrors.InvalidSource("describe source", "source location is required")
	}

	relation = strings.TrimSpace(relation)
	if relation == "" {
		relation = DefaultRelation
	}
	if !relationPattern.MatchString(relation) {
		return Descriptor{}, apperrors.InvalidSource("describe source", "invalid relation name %q", relation)
	}

	contentType := InferContentType(location)
	if strings.TrimSpace(declaredType) != "" {
		contentType = ParseContentType(declaredType)
	}
	return Descriptor{Location: location, ContentType: contentType, Relation: relation}, nil
}

func (d Descriptor) IngestFunction() string {
	return d.ContentType.IngestFunction()
}
