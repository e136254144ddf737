// Package detection finds straight line segments in tree masks.
//
// Two backends implement the LineDetector interface:
//
//   - HoughDetector: pure Go. Every foreground pixel votes into a (rho, theta)
//     accumulator with one-degree theta steps; local maxima above the vote
//     threshold are traced across the mask and split into segments wherever
//     more than MaxGap consecutive pixels are background.
//   - OpenCVDetector: OpenCV's HoughLinesP through gocv. Only compiled with
//     the gocv build tag; without it New("opencv") returns
//     ErrOpenCVUnavailable.
//
// # Coordinate System
//
// Segment endpoints use the image convention: origin at the top-left
// corner, X increasing rightward, Y increasing downward. HoughDetector
// endpoints are sub-pixel positions on the detected line.
//
// # Performance Considerations
//
// Voting costs 180 operations per foreground pixel. Callers restrict the
// mask to the region of interest first, and large photos should be
// downscaled when loaded.
package detection
