// Package profile measures how the width of a tree silhouette changes from
// top to bottom and locates the stable trunk band below the crown.
package profile
