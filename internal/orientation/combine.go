package orientation

// DefaultPCAWeight is the share of the principal-axis angle in a combined
// estimate.
const DefaultPCAWeight = 0.6

// Combine merges a principal-axis and a line-intersection estimate. Either
// may be nil. With both present the angle is w*pca + (1-w)*lines and the
// principal-axis confidence is carried over; with one present it is
// returned unchanged. With neither, Combine returns ErrNoEstimate.
func Combine(pca, lines *Estimate, w float64) (Estimate, error) {
	switch {
	case pca != nil && lines != nil:
		return Estimate{
			AngleDegrees: w*pca.AngleDegrees + (1-w)*lines.AngleDegrees,
			Confidence:   pca.Confidence,
			Source:       SourceCombined,
		}, nil
	case pca != nil:
		return *pca, nil
	case lines != nil:
		return *lines, nil
	default:
		return Estimate{}, ErrNoEstimate
	}
}
