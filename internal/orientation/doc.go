// Package orientation estimates the signed tilt of a tree trunk from its
// mask.
//
// Two independent estimators are provided:
//
//   - PrincipalAxis fits a two-component principal component analysis to
//     the foreground pixel coordinates and measures the first component
//     against the vertical. Its explained variance ratio is the confidence.
//   - LineIntersection detects near-vertical segments in the lower trunk
//     region, extends them to the bottom row and converts the offset of
//     their length-weighted crossing from the frame center into an angle.
//
// Combine blends the two with a fixed weight and falls back to whichever
// is present.
//
// # Sign Convention
//
// Angles are in degrees and a positive angle is a right lean. For the
// principal axis that means the top of the axis sits right of its bottom.
// For line intersection it means the weighted trunk crossing of the bottom
// row sits right of the frame center, which is (Width-1)/2 in pixel
// coordinates.
package orientation
