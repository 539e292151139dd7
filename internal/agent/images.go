package agent

import (
	"strings"

	"github.com/mementolabs/memento/pkg/models"
)

// ImageMode selects how photo turns are represented in model context.
type ImageMode string

const (
	// ImageDescriptionsOnly replaces every photo with its stored
	// description. Cheapest mode and the default.
	ImageDescriptionsOnly ImageMode = "descriptions_only"

	// ImageHybrid keeps full images for the most recent photo turns
	// (up to HybridImageLimit) and descriptions for the rest.
	ImageHybrid ImageMode = "hybrid"

	// ImageFull keeps every photo as a full image.
	ImageFull ImageMode = "full"
)

// Token cost estimates per retained photo representation.
const (
	descriptionTokenCost = 100
	fullImageTokenCost   = 500
)

// DefaultHybridImageLimit is how many trailing photo turns keep their
// pixels in hybrid mode.
const DefaultHybridImageLimit = 2

const (
	photoPrefix       = "[Photo:"
	photoSentFallback = "[Photo sent]"
)

// ImagePolicy decides the textual and visual representation of photo
// turns when replaying history to the model.
type ImagePolicy struct {
	Mode             ImageMode
	HybridImageLimit int
}

// NewImagePolicy returns a policy for the given mode with defaults
// applied. An unrecognized mode falls back to descriptions only.
func NewImagePolicy(mode ImageMode) ImagePolicy {
	switch mode {
	case ImageHybrid, ImageFull, ImageDescriptionsOnly:
	default:
		mode = ImageDescriptionsOnly
	}
	return ImagePolicy{
		Mode:             mode,
		HybridImageLimit: DefaultHybridImageLimit,
	}
}

// Render produces the text content for a turn under this policy.
//
// Photo turns render as "[Photo: {description}]" above the message
// text, or "[Photo sent]" when no description was captured. Rendering
// an already rendered text is a no-op, so turns can safely pass
// through the pipeline more than once.
func (p ImagePolicy) Render(turn models.Turn) string {
	if !turn.HasPhoto {
		return turn.Text
	}
	if alreadyRendered(turn.Text) {
		return turn.Text
	}

	marker := photoSentFallback
	if desc := strings.TrimSpace(turn.PhotoDescription); desc != "" {
		marker = photoPrefix + " " + desc + "]"
	}
	if turn.Text == "" {
		return marker
	}
	return marker + "\n" + turn.Text
}

// IncludeFullImage reports whether the photo turn at photoIndex (its
// position among the window's photo turns, zero-based) keeps its full
// image, given totalPhotos photo turns in the window.
func (p ImagePolicy) IncludeFullImage(photoIndex, totalPhotos int) bool {
	switch p.Mode {
	case ImageFull:
		return true
	case ImageHybrid:
		limit := p.HybridImageLimit
		if limit <= 0 {
			limit = DefaultHybridImageLimit
		}
		return photoIndex >= totalPhotos-limit
	default:
		return false
	}
}

// EstimateImageTokens returns the estimated token cost of the photo
// representations this policy selects for a window with totalPhotos
// photo turns.
func (p ImagePolicy) EstimateImageTokens(totalPhotos int) int {
	if totalPhotos <= 0 {
		return 0
	}
	full := 0
	for i := 0; i < totalPhotos; i++ {
		if p.IncludeFullImage(i, totalPhotos) {
			full++
		}
	}
	return full*fullImageTokenCost + (totalPhotos-full)*descriptionTokenCost
}

func alreadyRendered(text string) bool {
	return strings.HasPrefix(text, photoPrefix) || strings.HasPrefix(text, photoSentFallback)
}
