// Package mask turns tree silhouettes into clean binary masks.
//
// A Mask is a row-major grid of booleans where true marks a tree pixel. Masks
// are produced once per image and never mutated by the estimators that read
// them; every transform in this package returns a new Mask.
//
// # Sources
//
// Masks can be built from:
//   - An image with an alpha channel: a pixel is tree when its alpha
//     exceeds the configured opacity threshold.
//   - A grayscale or color image: the luminance is thresholded either with
//     Otsu's method or with a fixed level.
//   - A 0/255 byte grid or a boolean grid supplied by a caller.
//
// # Cleaning
//
// Clean removes segmentation noise in three steps:
//
//  1. Fill background holes smaller than MinRegionArea pixels
//  2. Remove foreground blobs smaller than MinRegionArea pixels
//  3. Morphological closing with a ClosingSize square to bridge trunk gaps
//
// Connectivity is 4-connected for both holes and blobs.
//
// # Backends
//
// Otsu thresholding and cleaning run in pure Go by default. BackendOpenCV
// runs them through gocv (cv::threshold with THRESH_OTSU, connected
// components with stats, and a rectangular MORPH_CLOSE) and is only
// compiled in with the gocv build tag. Both backends produce the same
// masks for odd closing sizes.
//
// # Coordinate System
//
// Same as the rest of the module: origin (0, 0) at the top-left, X grows to
// the right, Y grows downward.
package mask
