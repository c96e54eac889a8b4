// Package pose configures a generic graph solution for pose estimation: the
// asset names, the option schema, and the typed result shape produced by the
// pose landmark graph.
package pose
